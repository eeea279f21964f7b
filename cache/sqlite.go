package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/fetch"
)

const snapshotTable = `
CREATE TABLE IF NOT EXISTS snapshot (
	key        TEXT PRIMARY KEY,
	claims     TEXT NOT NULL,
	transfers  TEXT NOT NULL,
	aggregated TEXT NOT NULL,
	windows    TEXT NOT NULL,
	saved_at   INTEGER NOT NULL
);`

// SQLiteStore keeps snapshots in a local sqlite file, one row per key with
// the four logical slots as columns.
type SQLiteStore struct {
	db    *sql.DB
	stmts sync.Map // query -> *sql.Stmt
}

// NewSQLiteStore creates the table and a prepared-statement cache over db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(snapshotTable); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens (or creates) the sqlite file at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) prepare(query string) (*sql.Stmt, error) {
	if cached, ok := s.stmts.Load(query); ok {
		return cached.(*sql.Stmt), nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmts.Store(query, stmt)
	return stmt, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	stmt, err := s.prepare(`SELECT claims, transfers, aggregated, windows, saved_at FROM snapshot WHERE key = ?`)
	if err != nil {
		return nil, false, err
	}

	var claimsJSON, transfersJSON, aggregatedJSON, windowsJSON string
	var savedAt int64
	row := stmt.QueryRowContext(ctx, key)
	if err := row.Scan(&claimsJSON, &transfersJSON, &aggregatedJSON, &windowsJSON, &savedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}

	entry := &Entry{SavedAt: savedAt}
	// corrupt rows are a miss, never an error
	if err := json.Unmarshal([]byte(claimsJSON), &entry.Claims); err != nil {
		return s.corrupt(key, err)
	}
	if err := json.Unmarshal([]byte(transfersJSON), &entry.Transfers); err != nil {
		return s.corrupt(key, err)
	}
	if err := json.Unmarshal([]byte(aggregatedJSON), &entry.Aggregated); err != nil {
		return s.corrupt(key, err)
	}
	if err := json.Unmarshal([]byte(windowsJSON), &entry.Windows); err != nil {
		return s.corrupt(key, err)
	}
	return entry, true, nil
}

func (s *SQLiteStore) corrupt(key string, err error) (*Entry, bool, error) {
	logger.WithField("key", key).Warnf("discarding corrupt cached snapshot: %v", err)
	return nil, false, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, entry *Entry) error {
	claimsJSON, err := json.Marshal(orEmptyClaims(entry.Claims))
	if err != nil {
		return err
	}
	transfersJSON, err := json.Marshal(orEmptyTransfers(entry.Transfers))
	if err != nil {
		return err
	}
	aggregatedJSON, err := json.Marshal(entry.Aggregated)
	if err != nil {
		return err
	}
	windowsJSON, err := json.Marshal(orEmptyWindows(entry.Windows))
	if err != nil {
		return err
	}

	stmt, err := s.prepare(`INSERT OR REPLACE INTO snapshot (key, claims, transfers, aggregated, windows, saved_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, key, string(claimsJSON), string(transfersJSON), string(aggregatedJSON), string(windowsJSON), entry.SavedAt)
	return err
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	stmt, err := s.prepare(`DELETE FROM snapshot WHERE key = ?`)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, key)
	return err
}

// Close releases the prepared statements; the caller owns the *sql.DB.
func (s *SQLiteStore) Close() {
	s.stmts.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		s.stmts.Delete(k)
		return true
	})
}

func orEmptyClaims(v []bridge.ClaimRecord) []bridge.ClaimRecord {
	if v == nil {
		return []bridge.ClaimRecord{}
	}
	return v
}

func orEmptyTransfers(v []bridge.TransferEvent) []bridge.TransferEvent {
	if v == nil {
		return []bridge.TransferEvent{}
	}
	return v
}

func orEmptyWindows(v map[string]fetch.Window) map[string]fetch.Window {
	if v == nil {
		return map[string]fetch.Window{}
	}
	return v
}
