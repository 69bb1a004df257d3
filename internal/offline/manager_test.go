package offline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
	Auth   string
}

// fakeAPI is an httptest server standing in for the PMT API.
type fakeAPI struct {
	srv     *httptest.Server
	healthy atomic.Bool
	failOn  string

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.healthy.Store(true)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			if !f.healthy.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body, Auth: r.Header.Get("Authorization")})
		f.mu.Unlock()

		if r.URL.Path == f.failOn {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"An internal error occurred"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestManager(t *testing.T, api *fakeAPI) (*Manager, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "queue.json"))
	m, err := NewManager(Config{
		Store:         store,
		API:           NewClient(api.srv.URL, "token-123"),
		CheckInterval: 10 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return m, store
}

func TestManager_QueuePersists(t *testing.T) {
	api := newFakeAPI(t)
	m, store := newTestManager(t, api)

	require.NoError(t, m.Queue(Change{Type: ChangeTaskUpdate, Data: map[string]any{"id": "t1"}}))
	assert.ErrorIs(t, m.Queue(Change{Type: "bogus", Data: map[string]any{"id": "t1"}}), ErrUnknownChangeType)

	saved, err := store.Load()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.False(t, saved[0].Timestamp.IsZero(), "timestamp should be filled in")

	// A new manager over the same file sees the queue.
	reloaded, err := NewManager(Config{Store: store, API: NewClient(api.srv.URL, "")})
	require.NoError(t, err)
	assert.Len(t, reloaded.Pending(), 1)
}

func TestManager_SyncInOrder(t *testing.T) {
	api := newFakeAPI(t)
	m, store := newTestManager(t, api)

	require.NoError(t, m.Queue(Change{Type: ChangeTaskUpdate, Data: map[string]any{"id": "t1", "status": "done"}}))
	require.NoError(t, m.Queue(Change{Type: ChangeFeatureUpdate, Data: map[string]any{"id": "t2"}}))
	require.NoError(t, m.Queue(Change{Type: ChangeProjectUpdate, Data: map[string]any{"id": "p1", "name": "Apollo"}}))

	res, err := m.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Synced: 3, Remaining: 0}, res)

	reqs := api.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/api/tasks/t1", reqs[0].Path)
	assert.Equal(t, "/api/tasks/t2", reqs[1].Path)
	assert.Equal(t, []any{"feature"}, reqs[1].Body["tags"])
	assert.Equal(t, "/api/projects/p1", reqs[2].Path)
	assert.Equal(t, http.MethodPut, reqs[2].Method)
	assert.Equal(t, "Bearer token-123", reqs[0].Auth)

	assert.Empty(t, m.Pending())
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestManager_SyncStopsOnFirstError(t *testing.T) {
	api := newFakeAPI(t)
	api.failOn = "/api/tasks/t2"
	m, store := newTestManager(t, api)

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, m.Queue(Change{Type: ChangeTaskUpdate, Data: map[string]any{"id": id}}))
	}

	res, err := m.Sync(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 3, res.Remaining)
	assert.Len(t, api.recorded(), 2, "t3 must not be attempted")
	assert.Len(t, m.Pending(), 3, "the whole queue is retained")

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, saved, 3)
}

func TestManager_SyncNoopWhenOffline(t *testing.T) {
	api := newFakeAPI(t)
	api.healthy.Store(false)
	m, _ := newTestManager(t, api)

	require.NoError(t, m.Queue(Change{Type: ChangeTaskUpdate, Data: map[string]any{"id": "t1"}}))
	assert.False(t, m.CheckConnection(context.Background()))

	res, err := m.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Synced)
	assert.Equal(t, 1, res.Remaining)
	assert.Empty(t, api.recorded())
}

func TestManager_ReconnectSyncs(t *testing.T) {
	api := newFakeAPI(t)
	api.healthy.Store(false)
	m, _ := newTestManager(t, api)

	require.NoError(t, m.Queue(Change{Type: ChangeTaskUpdate, Data: map[string]any{"id": "t1"}}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)
	assert.Len(t, m.Pending(), 1)

	api.healthy.Store(true)
	require.Eventually(t, func() bool { return len(m.Pending()) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.Online())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestManager_RunFlushesLeftovers(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api)
	require.NoError(t, m.Queue(Change{Type: ChangeProjectUpdate, Data: map[string]any{"id": "p9"}}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(m.Pending()) == 0 }, time.Second, 5*time.Millisecond)
	reqs := api.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/projects/p9", reqs[0].Path)
}

func TestManager_T(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api)
	assert.Equal(t, "You are offline", m.T("errors.offline"))
	assert.Equal(t, "errors.unknown", m.T("errors.unknown"))
}
