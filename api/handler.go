package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/neocomx/CommentQueueService/task"
	"github.com/neocomx/CommentQueueService/worker"
)

// Server exposes the comment queue over HTTP.
type Server struct {
	store  *task.Store
	worker *worker.Worker

	defaultMinWait float64
	defaultMaxWait float64
	startedAt      time.Time
}

func NewServer(store *task.Store, w *worker.Worker, defaultMinWait, defaultMaxWait float64) *Server {
	return &Server{
		store:          store,
		worker:         w,
		defaultMinWait: defaultMinWait,
		defaultMaxWait: defaultMaxWait,
		startedAt:      time.Now().UTC(),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/comments", s.handleComments)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/keepalive", s.handleKeepalive)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/api/dashboard-status", s.handleDashboardStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// submitRequest is the body of POST /api/comments. Wait bounds are pointers
// so "absent" can fall back to the configured defaults.
type submitRequest struct {
	Comments  []task.Comment    `json:"comments"`
	Cookies   map[string]string `json:"cookies"`
	CSRFToken string            `json:"csrf_token"`
	MinWait   *float64          `json:"min_wait"`
	MaxWait   *float64          `json:"max_wait"`
}

type submitResponse struct {
	Message     string   `json:"message"`
	EnqueuedIDs []string `json:"enqueued_ids"`
	QueueSize   int      `json:"queue_size"`
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(body.Comments) == 0 {
		writeError(w, "no comments provided", http.StatusBadRequest)
		return
	}
	if len(body.Cookies) == 0 || body.CSRFToken == "" {
		writeError(w, "missing cookies or csrf_token", http.StatusBadRequest)
		return
	}

	minWait := s.defaultMinWait
	if body.MinWait != nil {
		minWait = *body.MinWait
	}
	maxWait := s.defaultMaxWait
	if body.MaxWait != nil {
		maxWait = *body.MaxWait
	}

	// Latest submission wins: credentials and pacing replace whatever the
	// queue was running with.
	s.store.SetSession(task.Session{
		Cookies:   body.Cookies,
		CSRFToken: body.CSRFToken,
		MinWait:   minWait,
		MaxWait:   maxWait,
	})

	ids := s.store.Enqueue(body.Comments)
	queueSize := s.store.Len()

	log.Info().Int("enqueued", len(ids)).Int("queue_size", queueSize).Msg("comments enqueued")

	s.worker.EnsureRunning()

	writeJSON(w, submitResponse{
		Message:     fmt.Sprintf("%d comment(s) added to queue", len(ids)),
		EnqueuedIDs: ids,
		QueueSize:   queueSize,
	}, http.StatusOK)
}

type statusResponse struct {
	QueueSize     int                   `json:"queue_size"`
	Pending       []task.PendingComment `json:"pending"`
	WorkerAlive   bool                  `json:"worker_alive"`
	RecentHistory []task.Result         `json:"recent_history"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.store.Snapshot()
	writeJSON(w, statusResponse{
		QueueSize:     snap.QueueSize,
		Pending:       snap.Pending,
		WorkerAlive:   s.worker.Alive(),
		RecentHistory: snap.RecentHistory,
	}, http.StatusOK)
}

type keepaliveResponse struct {
	Status string    `json:"status"`
	Posted int       `json:"posted"`
	Failed int       `json:"failed"`
	Time   time.Time `json:"time"`
}

// handleKeepalive is meant to be hit by an external cron: it keeps the
// process warm and immediately drains the whole queue with retries, blocking
// until done.
func (s *Server) handleKeepalive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := s.worker.DrainNow()
	writeJSON(w, keepaliveResponse{
		Status: "alive",
		Posted: report.Posted,
		Failed: report.Failed,
		Time:   report.Time,
	}, http.StatusOK)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	removed := s.store.Clear()
	log.Info().Int("removed", removed).Msg("queue cleared")
	writeJSON(w, map[string]string{
		"message": fmt.Sprintf("Cleared %d pending comment(s)", removed),
	}, http.StatusOK)
}

type dashboardStatusResponse struct {
	QueueSize        int                   `json:"queue_size"`
	Pending          []task.PendingComment `json:"pending"`
	TotalReceived    int64                 `json:"total_received"`
	TotalSuccess     int64                 `json:"total_success"`
	TotalFail        int64                 `json:"total_fail"`
	WorkerAlive      bool                  `json:"worker_alive"`
	CurrentlyPosting *task.PendingComment  `json:"currently_posting"`
	RecentHistory    []task.Result         `json:"recent_history"`
	MinWait          float64               `json:"min_wait"`
	MaxWait          float64               `json:"max_wait"`
	Uptime           string                `json:"uptime"`
}

func (s *Server) handleDashboardStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.store.Snapshot()
	writeJSON(w, dashboardStatusResponse{
		QueueSize:        snap.QueueSize,
		Pending:          snap.Pending,
		TotalReceived:    snap.TotalReceived,
		TotalSuccess:     snap.TotalSuccess,
		TotalFail:        snap.TotalFail,
		WorkerAlive:      s.worker.Alive(),
		CurrentlyPosting: snap.Current,
		RecentHistory:    snap.RecentHistory,
		MinWait:          snap.MinWait,
		MaxWait:          snap.MaxWait,
		Uptime:           humanUptime(time.Since(s.startedAt)),
	}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, map[string]string{"error": msg}, status)
}
