package task

import (
	"context"
	"time"
)

const (
	// historyTitleLimit bounds titles stored in the posting history.
	historyTitleLimit = 100
	// pendingTitleLimit bounds titles in pending/currently-posting summaries.
	pendingTitleLimit = 80
)

// Comment is one queued unit of work: a reply to post somewhere on Reddit.
// The ID is assigned by the store at enqueue time and never changes; any
// client-supplied id is discarded.
type Comment struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Text      string `json:"ai_comment"`
	Title     string `json:"title"`
	Subreddit string `json:"subreddit"`
}

// Session carries the credentials and pacing band used to post comments.
// The store holds exactly one Session; every submission overwrites it
// wholesale, so a comment enqueued under one session may be posted under a
// newer one.
type Session struct {
	Cookies   map[string]string `json:"cookies"`
	CSRFToken string            `json:"csrf_token"`
	MinWait   float64           `json:"min_wait"`
	MaxWait   float64           `json:"max_wait"`
}

// Result records the outcome of one posting attempt chain for a comment.
type Result struct {
	ID        string    `json:"id"`
	Subreddit string    `json:"subreddit"`
	Title     string    `json:"title"`
	Success   bool      `json:"success"`
	PostedAt  time.Time `json:"posted_at"`
}

// PendingComment is the summary shape used for queue listings and the
// currently-posting banner.
type PendingComment struct {
	ID        string `json:"id"`
	Subreddit string `json:"subreddit"`
	Title     string `json:"title"`
}

// Snapshot is a point-in-time view of the store for status reporting. Each
// field is read under its own lock; the fields are individually consistent
// but not captured atomically as a group.
type Snapshot struct {
	QueueSize     int
	Pending       []PendingComment
	TotalReceived int64
	TotalSuccess  int64
	TotalFail     int64
	Current       *PendingComment
	RecentHistory []Result
	MinWait       float64
	MaxWait       float64
}

// Executor performs the actual side effect for one comment. A nil return
// means the comment was posted; a non-nil error carries the diagnostic and
// counts as a plain failure. Implementations should not panic, but callers
// must treat a panic as a failure rather than let it escape.
type Executor interface {
	Post(ctx context.Context, c Comment, s Session) error
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
