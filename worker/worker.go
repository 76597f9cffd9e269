package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/neocomx/CommentQueueService/task"
)

// DefaultIdleGrace is how long the worker lingers on an empty queue before
// its goroutine exits.
const DefaultIdleGrace = time.Second

// Worker drains the store's pending queue on a single background goroutine,
// pacing posts with a random delay drawn from the current session band. The
// goroutine is started on demand by EnsureRunning and exits on its own after
// the queue has stayed empty for the idle grace period.
type Worker struct {
	store     *task.Store
	executor  task.Executor
	delays    DelaySource
	sleep     func(time.Duration)
	idleGrace time.Duration

	mu      sync.Mutex
	running bool
	kick    bool
}

func New(store *task.Store, executor task.Executor, delays DelaySource, idleGrace time.Duration) *Worker {
	if delays == nil {
		delays = NewUniformDelay()
	}
	if idleGrace <= 0 {
		idleGrace = DefaultIdleGrace
	}
	return &Worker{
		store:     store,
		executor:  executor,
		delays:    delays,
		sleep:     time.Sleep,
		idleGrace: idleGrace,
	}
}

// EnsureRunning starts the background loop unless a consumer is already
// alive, in which case the live one is nudged to survive its next idle
// check. Safe for concurrent callers; at most one loop runs at any time.
func (w *Worker) EnsureRunning() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		w.kick = true
		return
	}
	w.running = true
	go w.loop()
}

// Alive reports whether the background loop is currently running.
func (w *Worker) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) loop() {
	log.Info().Msg("worker started, waiting for comments")
	first := true

	for {
		c, ok := w.store.DequeueOne()
		if !ok {
			// Queue looks empty. Linger for the grace period so a
			// producer mid-enqueue doesn't strand its batch, then exit
			// unless something arrived or EnsureRunning kicked us.
			w.sleep(w.idleGrace)

			w.mu.Lock()
			if w.store.Len() == 0 && !w.kick {
				w.running = false
				w.mu.Unlock()
				log.Info().Msg("worker finished, queue empty")
				return
			}
			w.kick = false
			w.mu.Unlock()
			continue
		}

		// Session is re-read for every comment: a later submission
		// replaces both credentials and pacing band for everything still
		// queued.
		sess := w.store.Session()

		if !first {
			delay := w.delays.Between(sess.MinWait, sess.MaxWait)
			log.Info().Str("id", c.ID).Dur("delay", delay).Msg("waiting before next post")
			w.sleep(delay)
		}
		first = false

		err := w.execute(c, sess)
		if err != nil {
			log.Warn().Err(err).Str("id", c.ID).Str("subreddit", c.Subreddit).Msg("post failed")
		} else {
			log.Info().Str("id", c.ID).Str("subreddit", c.Subreddit).Msg("post succeeded")
		}

		w.store.RecordResult(task.Result{
			ID:        c.ID,
			Subreddit: c.Subreddit,
			Title:     c.Title,
			Success:   err == nil,
			PostedAt:  time.Now().UTC(),
		})
	}
}

// execute invokes the executor with currently-posting bookkeeping around it.
// A panic from the executor is coerced into an error here so the consumer
// loop never dies to a misbehaving collaborator.
func (w *Worker) execute(c task.Comment, sess task.Session) (err error) {
	w.store.SetCurrent(&c)
	defer w.store.SetCurrent(nil)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("executor panic: %v", rec)
		}
	}()
	return w.executor.Post(context.Background(), c, sess)
}
