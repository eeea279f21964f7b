// Package locking provides a keyed lock table guaranteeing at most one
// concurrent operation per logical key. Acquisition hands out a token whose
// Release is idempotent, so every exit path can release unconditionally.
package locking

import (
	"context"
	"sync"
)

type Table struct {
	mu   sync.Mutex
	held map[string]chan struct{} // closed when the key is released
}

func NewTable() *Table {
	return &Table{held: make(map[string]chan struct{})}
}

// TryAcquire takes the lock for key without blocking. The second return is
// false when the key is already held.
func (t *Table) TryAcquire(key string) (*Token, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, taken := t.held[key]; taken {
		return nil, false
	}
	t.held[key] = make(chan struct{})
	return &Token{table: t, key: key}, true
}

// Acquire blocks until the key is free or the context is canceled.
func (t *Table) Acquire(ctx context.Context, key string) (*Token, error) {
	for {
		t.mu.Lock()
		ch, taken := t.held[key]
		if !taken {
			t.held[key] = make(chan struct{})
			t.mu.Unlock()
			return &Token{table: t, key: key}, nil
		}
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
			// released, race for it again
		}
	}
}

// Held reports whether key is currently locked.
func (t *Table) Held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, taken := t.held[key]
	return taken
}

func (t *Table) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, taken := t.held[key]; taken {
		delete(t.held, key)
		close(ch)
	}
}

// Token is one acquisition. Release may be called any number of times from
// any exit path; only the first call frees the key.
type Token struct {
	table *Table
	key   string
	once  sync.Once
}

func (tk *Token) Release() {
	tk.once.Do(func() { tk.table.release(tk.key) })
}
