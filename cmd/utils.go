package cmd

import (
	"database/sql"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/bridgelens-io/bridgelens/cache"
)

// FileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// SplitList turns a comma separated config value into trimmed entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Shared helper function. Create the snapshot store from text config.
// backend is "sqlite" (dbFilePath) or "redis" (redisURL).
func SetupStore(backend string, dbFilePath string, redisURL string) (cache.Store, error) {
	switch backend {
	case "redis":
		r, err := cache.NewRedisStore(redisURL)
		if err != nil {
			logger.Errorf("failed to create redis store: %v", err)
			return nil, err
		}
		return r, nil
	default:
		db, err := sql.Open("sqlite3", dbFilePath)
		if err != nil {
			logger.Errorf("failed to open snapshot db %s: %v", dbFilePath, err)
			return nil, err
		}
		s, err := cache.NewSQLiteStore(db)
		if err != nil {
			logger.Errorf("failed to create sqlite store: %v", err)
			return nil, err
		}
		return s, nil
	}
}
