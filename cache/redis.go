package cache

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-redis/redis/v8"
	logger "github.com/sirupsen/logrus"
)

// hash fields of one snapshot key
const (
	slotClaims     = "claims"
	slotTransfers  = "transfers"
	slotAggregated = "aggregated"
	slotWindows    = "windows"
	slotSavedAt    = "savedAt"
)

// RedisStore keeps snapshots in a Redis hash per key, one hash field per
// logical slot.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opt), prefix: "bridgelens:snapshot:"}, nil
}

// NewRedisStoreWithClient wires an existing client, used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "bridgelens:snapshot:"}
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	savedAt, err := strconv.ParseInt(fields[slotSavedAt], 10, 64)
	if err != nil {
		return s.corrupt(key, err)
	}
	entry := &Entry{SavedAt: savedAt}
	if err := json.Unmarshal([]byte(fields[slotClaims]), &entry.Claims); err != nil {
		return s.corrupt(key, err)
	}
	if err := json.Unmarshal([]byte(fields[slotTransfers]), &entry.Transfers); err != nil {
		return s.corrupt(key, err)
	}
	if err := json.Unmarshal([]byte(fields[slotAggregated]), &entry.Aggregated); err != nil {
		return s.corrupt(key, err)
	}
	if err := json.Unmarshal([]byte(fields[slotWindows]), &entry.Windows); err != nil {
		return s.corrupt(key, err)
	}
	return entry, true, nil
}

func (s *RedisStore) corrupt(key string, err error) (*Entry, bool, error) {
	logger.WithField("key", key).Warnf("discarding corrupt cached snapshot: %v", err)
	return nil, false, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, entry *Entry) error {
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

	return s.client.HSet(ctx, s.prefix+key, map[string]interface{}{
		slotClaims:     string(claimsJSON),
		slotTransfers:  string(transfersJSON),
		slotAggregated: string(aggregatedJSON),
		slotWindows:    string(windowsJSON),
		slotSavedAt:    entry.SavedAt,
	}).Err()
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
