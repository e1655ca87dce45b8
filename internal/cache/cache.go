// Package cache persists anomaly results per commit so re-analysis of
// already-seen history skips the expensive classification stage.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

var anomalyBucket = []byte("anomaly_results")

// Cache is a local bbolt-backed result store keyed by repo and commit.
type Cache struct {
	db *bolt.DB
}

// Open opens (or creates) the cache file at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(anomalyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get returns the cached anomaly result for a commit, if present.
func (c *Cache) Get(repoID, sha string) (*models.AnomalyResult, bool, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(anomalyBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(key(repoID, sha)); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}

	var result models.AnomalyResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Treat a corrupt entry as a miss; it will be overwritten.
		return nil, false, nil
	}
	return &result, true, nil
}

// Put stores an anomaly result for a commit.
func (c *Cache) Put(repoID, sha string, result models.AnomalyResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(anomalyBucket).Put(key(repoID, sha), raw)
	})
}

// Close releases the underlying database file.
func (c *Cache) Close() error {
	return c.db.Close()
}

func key(repoID, sha string) []byte {
	return []byte(repoID + ":" + sha)
}
