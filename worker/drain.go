package worker

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/neocomx/CommentQueueService/task"
)

const (
	drainMaxAttempts = 3
	drainRetryGap    = 2 * time.Second
	drainGapMin      = 2.0
	drainGapMax      = 4.0
)

// Report summarizes one synchronous drain pass.
type Report struct {
	Posted int       `json:"posted"`
	Failed int       `json:"failed"`
	Time   time.Time `json:"time"`
}

// DrainNow synchronously posts every queued comment on the calling
// goroutine, retrying each up to three times before recording it as failed.
// Unlike the background loop it snapshots the session once for the whole
// pass, and paces with a fixed short gap instead of the configured band. It
// competes with the background worker only through DequeueOne, so a comment
// is consumed by exactly one of the two.
func (w *Worker) DrainNow() Report {
	sess := w.store.Session()

	var report Report
	for {
		c, ok := w.store.DequeueOne()
		if !ok {
			break
		}

		var err error
		for attempt := 1; attempt <= drainMaxAttempts; attempt++ {
			err = w.execute(c, sess)
			if err == nil {
				break
			}
			log.Warn().Err(err).Str("id", c.ID).
				Int("attempt", attempt).Int("max", drainMaxAttempts).
				Msg("retrying comment")
			w.sleep(drainRetryGap)
		}

		if err == nil {
			report.Posted++
		} else {
			report.Failed++
		}

		w.store.RecordResult(task.Result{
			ID:        c.ID,
			Subreddit: c.Subreddit,
			Title:     c.Title,
			Success:   err == nil,
			PostedAt:  time.Now().UTC(),
		})

		// Small gap between posts to stay under the rate limit.
		if w.store.Len() > 0 {
			w.sleep(w.delays.Between(drainGapMin, drainGapMax))
		}
	}

	report.Time = time.Now().UTC()
	return report
}
