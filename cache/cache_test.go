package cache

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/fetch"
)

func memoryStore(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return store, db
}

func testEntry() *Entry {
	return &Entry{
		Claims: []bridge.ClaimRecord{{
			ClaimNumber:    7,
			BridgeAddress:  "0x1000000000000000000000000000000000000001",
			ReferencedTxID: "0xaa",
			Amount:         "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			YesStake:       "50",
			NoStake:        "0",
		}},
		Transfers: []bridge.TransferEvent{{
			SourceTxID:    "0xaa",
			SourceNetwork: "homechain",
			Amount:        "1000000",
			BlockNumber:   100,
		}},
		Aggregated: bridge.AggregationResult{
			Completed:  []bridge.CompletedTransfer{},
			Suspicious: []bridge.SuspiciousClaim{},
			Pending:    []bridge.TransferEvent{},
		},
		SavedAt: 1719916800000,
		Windows: map[string]fetch.Window{"homechain": {Hours: 24}},
	}
}

func TestSQLiteSaveLoadRoundtrip(t *testing.T) {
	store, _ := memoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "main", testEntry()))

	got, ok, err := store.Load(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)

	// amounts survive as exact decimal strings
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", got.Claims[0].Amount)
	assert.Equal(t, "1000000", got.Transfers[0].Amount)
	assert.Equal(t, int64(1719916800000), got.SavedAt)
	assert.Equal(t, 24.0, got.Windows["homechain"].Hours)
}

func TestSQLiteLoadMiss(t *testing.T) {
	store, _ := memoryStore(t)

	got, ok, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSQLiteCorruptRowIsMiss(t *testing.T) {
	store, db := memoryStore(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO snapshot (key, claims, transfers, aggregated, windows, saved_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"main", "{{{not json", "[]", "{}", "{}", 123)
	require.NoError(t, err)

	got, ok, err := store.Load(ctx, "main")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSQLiteClear(t *testing.T) {
	store, _ := memoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "main", testEntry()))
	require.NoError(t, store.Clear(ctx, "main"))

	_, ok, err := store.Load(ctx, "main")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteOverwrite(t *testing.T) {
	store, _ := memoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "main", testEntry()))
	second := testEntry()
	second.Claims[0].Amount = "42"
	second.SavedAt = 1719916900000
	require.NoError(t, store.Save(ctx, "main", second))

	got, ok, err := store.Load(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42", got.Claims[0].Amount)
	assert.Equal(t, int64(1719916900000), got.SavedAt)
}

func TestManagerStaleness(t *testing.T) {
	store, _ := memoryStore(t)
	now := time.UnixMilli(1719916800000)
	m := NewManager(store,
		WithStaleAfter(10*time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	m.Save(ctx, "main", testEntry())

	_, st, ok := m.Load(ctx, "main")
	require.True(t, ok)
	assert.False(t, st.Stale)

	now = now.Add(11 * time.Minute)
	_, st, ok = m.Load(ctx, "main")
	require.True(t, ok)
	assert.True(t, st.Stale)
	assert.Equal(t, 11*time.Minute, st.Age)
}

func TestManagerRefreshCoalescing(t *testing.T) {
	store, _ := memoryStore(t)
	m := NewManager(store)

	release, ok := m.BeginRefresh("main")
	require.True(t, ok)
	assert.True(t, m.Refreshing("main"))

	_, ok = m.BeginRefresh("main")
	assert.False(t, ok)

	release()
	assert.False(t, m.Refreshing("main"))
	release2, ok := m.BeginRefresh("main")
	require.True(t, ok)
	release2()
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	return nil, false, errors.New("disk on fire")
}
func (failingStore) Save(ctx context.Context, key string, entry *Entry) error {
	return errors.New("disk on fire")
}
func (failingStore) Clear(ctx context.Context, key string) error { return nil }

func TestManagerSaveIsBestEffort(t *testing.T) {
	m := NewManager(failingStore{}, WithClock(func() time.Time { return time.UnixMilli(5000) }))

	entry := m.Save(context.Background(), "main", testEntry())
	require.NotNil(t, entry)
	assert.Equal(t, int64(5000), entry.SavedAt)

	// load errors are a miss, never a failure
	_, _, ok := m.Load(context.Background(), "main")
	assert.False(t, ok)
}
