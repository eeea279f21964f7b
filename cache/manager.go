package cache

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/bridgelens-io/bridgelens/locking"
)

// Manager wraps a Store with staleness computation and the per-key
// in-flight-refresh guard. It is the only component that writes snapshots.
type Manager struct {
	store      Store
	staleAfter time.Duration
	inflight   *locking.Table
	now        func() time.Time
}

const DefaultStaleAfter = 10 * time.Minute

type ManagerOption func(*Manager)

// WithStaleAfter sets the age past which a snapshot is flagged stale.
func WithStaleAfter(d time.Duration) ManagerOption {
	return func(m *Manager) { m.staleAfter = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		staleAfter: DefaultStaleAfter,
		inflight:   locking.NewTable(),
		now:        time.Now,
	}
	for _, op := range opts {
		op(m)
	}
	return m
}

// Load never fails: store errors and corrupt data are both treated as a
// miss so a cold start simply proceeds to a fresh fetch.
func (m *Manager) Load(ctx context.Context, key string) (*Entry, Staleness, bool) {
	entry, ok, err := m.store.Load(ctx, key)
	if err != nil {
		logger.WithField("key", key).Warnf("cache load failed, treating as miss: %v", err)
		return nil, Staleness{}, false
	}
	if !ok {
		return nil, Staleness{}, false
	}
	return entry, m.stalenessOf(entry), true
}

// Save stamps and persists the entry. Persistence is best effort: a write
// failure is logged and the stamped entry is still returned so the caller's
// in-memory result is unaffected.
func (m *Manager) Save(ctx context.Context, key string, entry *Entry) *Entry {
	entry.SavedAt = m.now().UnixMilli()
	if err := m.store.Save(ctx, key, entry); err != nil {
		logger.WithField("key", key).Warnf("cache save failed: %v", err)
	}
	return entry
}

// Clear drops the snapshot for key.
func (m *Manager) Clear(ctx context.Context, key string) error {
	return m.store.Clear(ctx, key)
}

// BeginRefresh takes the in-flight-refresh flag for key. A refresh request
// while one is running is coalesced: ok is false and the caller backs off.
// The returned release is safe on every exit path.
func (m *Manager) BeginRefresh(key string) (release func(), ok bool) {
	token, ok := m.inflight.TryAcquire(key)
	if !ok {
		return nil, false
	}
	return token.Release, true
}

// Refreshing reports whether a refresh for key is in flight.
func (m *Manager) Refreshing(key string) bool {
	return m.inflight.Held(key)
}

func (m *Manager) stalenessOf(entry *Entry) Staleness {
	savedAt := entry.SavedTime()
	age := m.now().Sub(savedAt)
	return Staleness{
		SavedAt: savedAt,
		Age:     age,
		Stale:   age > m.staleAfter,
	}
}
