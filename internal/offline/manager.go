package offline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultCheckInterval is how often Run probes connectivity.
const DefaultCheckInterval = 30 * time.Second

// Store persists the pending queue.
type Store interface {
	Load() ([]Change, error)
	Save(changes []Change) error
}

// API is the backend the manager replays changes against.
type API interface {
	Probe(ctx context.Context) bool
	Put(ctx context.Context, path string, body any) error
}

// Config configures a Manager.
type Config struct {
	Store         Store
	API           API
	Translations  Translations
	Language      string
	CheckInterval time.Duration
	Logger        *slog.Logger
}

// Manager holds the ordered queue of pending changes.
type Manager struct {
	store    Store
	api      API
	tr       Translations
	language string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending []Change
	online  bool

	// syncMu serializes Sync calls.
	syncMu sync.Mutex
}

// SyncResult describes one Sync call.
type SyncResult struct {
	Synced    int
	Remaining int
}

// NewManager loads the persisted queue. The manager starts online; the first
// connectivity check corrects that.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil || cfg.API == nil {
		return nil, fmt.Errorf("offline: store and api are required")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.Translations == nil {
		cfg.Translations = DefaultTranslations()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	pending, err := cfg.Store.Load()
	if err != nil {
		return nil, err
	}

	return &Manager{
		store:    cfg.Store,
		api:      cfg.API,
		tr:       cfg.Translations,
		language: cfg.Language,
		interval: cfg.CheckInterval,
		logger:   cfg.Logger.With("component", "offline.manager"),
		now:      time.Now,
		pending:  pending,
		online:   true,
	}, nil
}

// Queue validates and appends a change, then persists the queue.
func (m *Manager) Queue(c Change) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := append(m.pending[:len(m.pending):len(m.pending)], c)
	if err := m.store.Save(next); err != nil {
		return err
	}
	m.pending = next
	m.logger.Debug("change_queued", "type", c.Type, "pending", len(next))
	return nil
}

// Pending returns a copy of the queue.
func (m *Manager) Pending() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Change, len(m.pending))
	copy(out, m.pending)
	return out
}

// Online reports the last known connectivity state.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Sync replays the queue serially in insertion order. It does nothing while
// offline or when the queue is empty. The first failure stops the replay and
// leaves the whole queue in place; success clears it.
func (m *Manager) Sync(ctx context.Context) (SyncResult, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	m.mu.Lock()
	online := m.online
	batch := make([]Change, len(m.pending))
	copy(batch, m.pending)
	m.mu.Unlock()

	if !online || len(batch) == 0 {
		return SyncResult{Remaining: len(batch)}, nil
	}

	for i, c := range batch {
		path, body := c.request()
		if err := m.api.Put(ctx, path, body); err != nil {
			m.logger.Error("sync_failed",
				"message", m.T("errors.syncFailed"),
				"type", c.Type,
				"position", i,
				"error", err,
			)
			return SyncResult{Synced: i, Remaining: len(batch)}, fmt.Errorf("sync %s: %w", c.Type, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Changes queued while the replay ran stay for the next sync.
	rest := make([]Change, len(m.pending)-len(batch))
	copy(rest, m.pending[len(batch):])
	if err := m.store.Save(rest); err != nil {
		return SyncResult{Synced: len(batch), Remaining: len(m.pending)}, err
	}
	m.pending = rest

	m.logger.Info("sync_completed", "synced", len(batch), "remaining", len(rest))
	return SyncResult{Synced: len(batch), Remaining: len(rest)}, nil
}

// CheckConnection probes the API and reacts to a state change. It returns
// the new state.
func (m *Manager) CheckConnection(ctx context.Context) bool {
	online := m.api.Probe(ctx)

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return online
	}

	if online {
		m.logger.Info("connectivity_restored", "message", m.T("connectivity.restored"))
		m.syncQuietly(ctx)
	} else {
		m.logger.Warn("connectivity_lost", "message", m.T("connectivity.lost"))
	}
	return online
}

func (m *Manager) syncQuietly(ctx context.Context) {
	if _, err := m.Sync(ctx); err != nil && ctx.Err() == nil {
		m.logger.Warn("background_sync_failed", "error", err)
	}
}

// Run checks connectivity immediately and then every interval until ctx is
// cancelled. Changes left from an earlier session are flushed on the first
// successful check.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// The manager starts online, so a reachable API is not a transition.
	if m.CheckConnection(ctx) {
		m.syncQuietly(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.CheckConnection(ctx)
		}
	}
}

// T translates key in the manager's language.
func (m *Manager) T(key string) string {
	return m.tr.Translate(key, m.language, DefaultNamespace)
}
