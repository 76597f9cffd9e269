package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neocomx/CommentQueueService/task"
	"github.com/neocomx/CommentQueueService/worker"
)

type stubExecutor struct{ err error }

func (s stubExecutor) Post(context.Context, task.Comment, task.Session) error {
	return s.err
}

func setupServer() (*task.Store, *http.ServeMux) {
	store := task.NewStore(500)
	store.SetSession(task.Session{MinWait: 4, MaxWait: 6})

	w := worker.New(store, stubExecutor{}, nil, 10*time.Millisecond)
	server := NewServer(store, w, 4, 6)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return store, mux
}

func doJSON(mux *http.ServeMux, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleComments_Validation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectedErr string
	}{
		{
			name:        "invalid json",
			body:        "not json{",
			expectedErr: "invalid request body",
		},
		{
			name:        "empty batch",
			body:        `{"comments": [], "cookies": {"a": "1"}, "csrf_token": "t"}`,
			expectedErr: "no comments provided",
		},
		{
			name:        "missing cookies",
			body:        `{"comments": [{"url": "u", "ai_comment": "c"}], "csrf_token": "t"}`,
			expectedErr: "missing cookies or csrf_token",
		},
		{
			name:        "missing csrf token",
			body:        `{"comments": [{"url": "u", "ai_comment": "c"}], "cookies": {"a": "1"}}`,
			expectedErr: "missing cookies or csrf_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mux := setupServer()

			rec := doJSON(mux, http.MethodPost, "/api/comments", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.expectedErr, resp["error"])

			// Nothing may reach the queue on a rejected submission.
			assert.Zero(t, store.Len())
		})
	}
}

func TestHandleComments_Success(t *testing.T) {
	store, mux := setupServer()

	body := `{
		"comments": [
			{"url": "https://www.reddit.com/r/golang/comments/abc/one/", "ai_comment": "nice", "title": "one", "subreddit": "golang"},
			{"url": "https://www.reddit.com/r/golang/comments/def/two/", "ai_comment": "cool", "title": "two", "subreddit": "golang"}
		],
		"cookies": {"reddit_session": "s"},
		"csrf_token": "tok",
		"min_wait": 0,
		"max_wait": 0
	}`

	rec := doJSON(mux, http.MethodPost, "/api/comments", []byte(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp submitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2 comment(s) added to queue", resp.Message)
	assert.Len(t, resp.EnqueuedIDs, 2)
	assert.Equal(t, 2, resp.QueueSize)

	sess := store.Session()
	assert.Equal(t, "tok", sess.CSRFToken)
	assert.Zero(t, sess.MinWait)
	assert.Zero(t, sess.MaxWait)

	received, _, _ := store.Counters()
	assert.Equal(t, int64(2), received)
}

func TestHandleComments_DefaultWaitBand(t *testing.T) {
	store, mux := setupServer()

	body := `{
		"comments": [{"url": "u", "ai_comment": "c"}],
		"cookies": {"a": "1"},
		"csrf_token": "t"
	}`

	rec := doJSON(mux, http.MethodPost, "/api/comments", []byte(body))
	require.Equal(t, http.StatusOK, rec.Code)

	sess := store.Session()
	assert.Equal(t, 4.0, sess.MinWait)
	assert.Equal(t, 6.0, sess.MaxWait)
}

func TestHandleComments_MethodNotAllowed(t *testing.T) {
	_, mux := setupServer()
	rec := doJSON(mux, http.MethodGet, "/api/comments", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	store, mux := setupServer()
	store.Enqueue([]task.Comment{{Subreddit: "golang", Title: "pending"}})
	store.RecordResult(task.Result{ID: "done", Subreddit: "golang", Success: true, PostedAt: time.Now().UTC()})

	rec := doJSON(mux, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.QueueSize)
	require.Len(t, resp.Pending, 1)
	assert.Equal(t, "pending", resp.Pending[0].Title)
	assert.False(t, resp.WorkerAlive)
	require.Len(t, resp.RecentHistory, 1)
	assert.True(t, resp.RecentHistory[0].Success)
}

func TestHandleClear(t *testing.T) {
	store, mux := setupServer()
	store.Enqueue([]task.Comment{{Title: "a"}, {Title: "b"}, {Title: "c"}})

	rec := doJSON(mux, http.MethodPost, "/api/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Cleared 3 pending comment(s)", resp["message"])
	assert.Zero(t, store.Len())

	rec = doJSON(mux, http.MethodGet, "/api/clear", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleKeepalive_EmptyQueue(t *testing.T) {
	_, mux := setupServer()

	rec := doJSON(mux, http.MethodGet, "/api/keepalive", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp keepaliveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Zero(t, resp.Posted)
	assert.Zero(t, resp.Failed)
	assert.False(t, resp.Time.IsZero())
}

func TestHandleKeepalive_DrainsQueue(t *testing.T) {
	store, mux := setupServer()
	store.Enqueue([]task.Comment{{Title: "only one"}})

	rec := doJSON(mux, http.MethodGet, "/api/keepalive", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp keepaliveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Posted)
	assert.Zero(t, resp.Failed)
	assert.Zero(t, store.Len())
}

func TestHandleDashboardStatus(t *testing.T) {
	store, mux := setupServer()
	store.Enqueue([]task.Comment{{Subreddit: "golang", Title: "queued"}})
	store.RecordResult(task.Result{ID: "x", Success: false})

	rec := doJSON(mux, http.MethodGet, "/api/dashboard-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dashboardStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.QueueSize)
	assert.Equal(t, int64(1), resp.TotalReceived)
	assert.Equal(t, int64(1), resp.TotalFail)
	assert.Zero(t, resp.TotalSuccess)
	assert.False(t, resp.WorkerAlive)
	assert.Nil(t, resp.CurrentlyPosting)
	assert.Equal(t, 4.0, resp.MinWait)
	assert.Equal(t, 6.0, resp.MaxWait)
	assert.NotEmpty(t, resp.Uptime)
}

func TestHandleHealth(t *testing.T) {
	_, mux := setupServer()

	rec := doJSON(mux, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["time"])
}

func TestHandleDashboardPage(t *testing.T) {
	_, mux := setupServer()

	rec := doJSON(mux, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Comment Queue Dashboard")

	rec = doJSON(mux, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
