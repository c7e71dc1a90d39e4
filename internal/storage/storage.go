package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/young1lin/browsersearch/internal/models"
	"github.com/young1lin/browsersearch/pkg/logger"
)

var bucketName = []byte("search_results")

// cacheEntry is the stored form of a search response
type cacheEntry struct {
	StoredAt time.Time              `json:"stored_at"`
	Response *models.SearchResponse `json:"response"`
}

// ResultCache provides persistent storage for search responses using BBolt
type ResultCache struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

// NewResultCache opens (or creates) the cache database at path. Entries older than ttl are ignored.
func NewResultCache(path string, ttl time.Duration) (*ResultCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	// Create bucket if not exists
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("result cache initialized", zap.String("path", path), zap.Duration("ttl", ttl))
	return &ResultCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Put saves a search response under key
func (c *ResultCache) Put(key string, resp *models.SearchResponse) error {
	data, err := json.Marshal(cacheEntry{StoredAt: c.now(), Response: resp})
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(key), data)
	})
}

// Get retrieves a search response by key.
// Returns the response and true if found and fresh, nil and false otherwise
func (c *ResultCache) Get(key string) (*models.SearchResponse, bool) {
	var entry cacheEntry

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &entry)
	})

	if err != nil || entry.Response == nil || c.expired(entry) {
		return nil, false
	}

	return entry.Response, true
}

// Delete removes a cached response by key
func (c *ResultCache) Delete(key string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Delete([]byte(key))
	})
}

// Purge removes expired and unreadable entries and returns how many were dropped.
func (c *ResultCache) Purge() (int, error) {
	removed := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var entry cacheEntry
			if err := json.Unmarshal(v, &entry); err != nil || c.expired(entry) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (c *ResultCache) expired(entry cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(entry.StoredAt) > c.ttl
}

// Close closes the database connection
func (c *ResultCache) Close() error {
	return c.db.Close()
}
