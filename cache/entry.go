// Package cache persists the last-known-good reconciliation snapshot and
// serves it instantly while a refresh runs in the background.
package cache

import (
	"time"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/fetch"
)

// Entry is one persisted snapshot: the raw record sets, the aggregation
// derived from them, and the window settings the fetch actually used.
// SavedAt is epoch milliseconds.
type Entry struct {
	Claims     []bridge.ClaimRecord     `json:"claims"`
	Transfers  []bridge.TransferEvent   `json:"transfers"`
	Aggregated bridge.AggregationResult `json:"aggregated"`
	SavedAt    int64                    `json:"savedAt"`
	Windows    map[string]fetch.Window  `json:"searchWindowSettings"`
}

// SavedTime converts SavedAt to a time.Time.
func (e *Entry) SavedTime() time.Time {
	return time.UnixMilli(e.SavedAt)
}

// Staleness describes how old a served snapshot is. Display only; nothing
// evicts or refreshes because of it.
type Staleness struct {
	SavedAt time.Time     `json:"savedAt"`
	Age     time.Duration `json:"age"`
	Stale   bool          `json:"stale"`
}
