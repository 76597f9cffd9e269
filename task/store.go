package task

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is how many posting results are kept when no explicit
// limit is configured.
const DefaultHistoryLimit = 500

// Store holds all mutable state shared between the HTTP handlers and the
// worker: the pending queue, the posting history, aggregate counters, the
// current session and the currently-posting marker. Each region has its own
// mutex and no method holds more than one of them, so unrelated reads never
// serialize against the enqueue/dequeue path.
type Store struct {
	queueMu sync.Mutex
	pending []Comment

	historyMu    sync.Mutex
	history      []Result
	historyLimit int

	statsMu       sync.Mutex
	totalReceived int64
	totalSuccess  int64
	totalFail     int64

	sessionMu sync.Mutex
	session   Session

	currentMu sync.Mutex
	current   *Comment
}

func NewStore(historyLimit int) *Store {
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{historyLimit: historyLimit}
}

// Enqueue assigns each comment a fresh id, appends the batch to the pending
// queue in input order and bumps the received counter. The returned ids are
// in batch order.
func (s *Store) Enqueue(comments []Comment) []string {
	ids := make([]string, 0, len(comments))

	s.queueMu.Lock()
	for _, c := range comments {
		c.ID = newID()
		s.pending = append(s.pending, c)
		ids = append(ids, c.ID)
	}
	s.queueMu.Unlock()

	s.statsMu.Lock()
	s.totalReceived += int64(len(ids))
	s.statsMu.Unlock()

	return ids
}

// DequeueOne removes and returns the head of the pending queue. The second
// return is false when the queue is empty.
func (s *Store) DequeueOne() (Comment, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if len(s.pending) == 0 {
		return Comment{}, false
	}

	c := s.pending[0]
	// Zero out the freed slot so the backing array doesn't pin the comment.
	s.pending[0] = Comment{}
	s.pending = s.pending[1:]
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return c, true
}

// Len reports the number of pending comments.
func (s *Store) Len() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.pending)
}

// PeekAll returns a non-destructive summary of the pending queue in FIFO
// order, with titles truncated for display.
func (s *Store) PeekAll() []PendingComment {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	out := make([]PendingComment, 0, len(s.pending))
	for _, c := range s.pending {
		out = append(out, PendingComment{
			ID:        c.ID,
			Subreddit: c.Subreddit,
			Title:     truncate(c.Title, pendingTitleLimit),
		})
	}
	return out
}

// Clear empties the pending queue and returns how many comments were removed.
func (s *Store) Clear() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	removed := len(s.pending)
	s.pending = nil
	return removed
}

// SetSession overwrites the current session wholesale. Comments already in
// the queue will be posted with whatever session is current when they are
// dequeued, not the one they were submitted with.
func (s *Store) SetSession(sess Session) {
	sess.Cookies = copyCookies(sess.Cookies)

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	s.session = sess
}

// Session returns a copy of the current session.
func (s *Store) Session() Session {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	sess := s.session
	sess.Cookies = copyCookies(sess.Cookies)
	return sess
}

// SetCurrent records the comment presently being posted, or clears the
// marker when called with nil.
func (s *Store) SetCurrent(c *Comment) {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()

	if c == nil {
		s.current = nil
		return
	}
	cc := *c
	s.current = &cc
}

// Current returns a display summary of the comment being posted right now,
// or nil when the worker is between comments.
func (s *Store) Current() *PendingComment {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()

	if s.current == nil {
		return nil
	}
	return &PendingComment{
		ID:        s.current.ID,
		Subreddit: s.current.Subreddit,
		Title:     truncate(s.current.Title, pendingTitleLimit),
	}
}

// RecordResult appends a posting outcome to the history, evicting the oldest
// entry once the bound is exceeded, and bumps the matching counter.
func (s *Store) RecordResult(r Result) {
	r.Title = truncate(r.Title, historyTitleLimit)

	s.historyMu.Lock()
	s.history = append(s.history, r)
	if len(s.history) > s.historyLimit {
		over := len(s.history) - s.historyLimit
		s.history = append([]Result(nil), s.history[over:]...)
	}
	s.historyMu.Unlock()

	s.statsMu.Lock()
	if r.Success {
		s.totalSuccess++
	} else {
		s.totalFail++
	}
	s.statsMu.Unlock()
}

// RecentHistory returns up to limit of the most recent results, oldest
// first. A non-positive limit returns the full retained history.
func (s *Store) RecentHistory(limit int) []Result {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Result, limit)
	copy(out, s.history[n-limit:])
	return out
}

// Counters returns the received/success/fail totals.
func (s *Store) Counters() (received, success, fail int64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.totalReceived, s.totalSuccess, s.totalFail
}

// Snapshot assembles the dashboard view. Each region is read under its own
// lock; a submission racing the snapshot may be reflected in some fields and
// not others, which status consumers tolerate.
func (s *Store) Snapshot() Snapshot {
	received, success, fail := s.Counters()
	sess := s.Session()

	return Snapshot{
		QueueSize:     s.Len(),
		Pending:       s.PeekAll(),
		TotalReceived: received,
		TotalSuccess:  success,
		TotalFail:     fail,
		Current:       s.Current(),
		RecentHistory: s.RecentHistory(50),
		MinWait:       sess.MinWait,
		MaxWait:       sess.MaxWait,
	}
}

// newID returns the short id form used across the API: the first 8 hex
// characters of a v4 uuid. Uniqueness holds for the process lifetime at the
// volumes this service sees.
func newID() string {
	return uuid.NewString()[:8]
}

func copyCookies(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
