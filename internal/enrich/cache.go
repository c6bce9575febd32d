package enrich

import (
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/codegraphhq/codegraph/internal/logging"
)

var resolutionBucket = []byte("resolution_cache")

// ResolutionCache is the content-addressed, write-once cache of resolved
// references, persisted in bbolt. Keys are PendingLink slugs (themselves
// fingerprints of the reference context); values are canonical target FQNs.
type ResolutionCache struct {
	db *bolt.DB
}

// OpenResolutionCache opens (creating if needed) the cache database.
func OpenResolutionCache(path string) (*ResolutionCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resolutionBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ResolutionCache{db: db}, nil
}

// Get returns the cached canonical FQN for a link, if present.
func (c *ResolutionCache) Get(linkSlug string) (string, bool) {
	if c == nil || c.db == nil {
		return "", false
	}
	var value string
	_ = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(resolutionBucket).Get([]byte(linkSlug)); v != nil {
			value = string(v)
		}
		return nil
	})
	return value, value != ""
}

// Put records a resolution. Write-once: an existing entry is left alone.
func (c *ResolutionCache) Put(linkSlug, canonicalFQN string) {
	if c == nil || c.db == nil || canonicalFQN == "" {
		return
	}
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(resolutionBucket)
		if b.Get([]byte(linkSlug)) != nil {
			return nil
		}
		return b.Put([]byte(linkSlug), []byte(canonicalFQN))
	})
	if err != nil {
		logging.Component("resolution_cache").Warn("cache write failed", "key", linkSlug, "error", err)
	}
}

// Close closes the underlying database.
func (c *ResolutionCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
