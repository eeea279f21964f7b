package cache

import "context"

// Store is the narrow persistence port behind the manager. Implementations
// keep four logical slots (claims, transfers, aggregated, savedAt plus the
// window settings) under one logical key.
//
// Load returns (nil, false, nil) on a miss. Stored data that fails to parse
// is a miss, not an error; only infrastructure failures surface as errors.
type Store interface {
	Load(ctx context.Context, key string) (*Entry, bool, error)
	Save(ctx context.Context, key string, entry *Entry) error
	Clear(ctx context.Context, key string) error
}
