package manager

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

// CachedResult is the serialized form of a completed run's observables,
// keyed by scenario fingerprint so that resubmitting an identical scenario
// (same topology, policies and params) skips re-running the engine.
type CachedResult struct {
	CompletionTimes map[string]map[string]float64 `json:"completion_times"`
	PortSummary     []PortUtilization              `json:"port_summary"`
	TraceLen        int                            `json:"trace_len"`
	CachedAt        time.Time                      `json:"cached_at"`
}

var bucketResults = []byte("results")

// ResultCache is a boltdb-backed content-addressed cache mapping a
// scenario's blake3 fingerprint to its last completed run's results.
// Because the engine is deterministic (invariant: identical inputs yield
// identical schedules), a cache hit is exact, not approximate.
type ResultCache struct {
	db *bolt.DB
}

// OpenResultCache opens (creating if absent) the result cache at path.
func OpenResultCache(path string) (*ResultCache, error) {
	db, err := bolt.Open(filepath.Clean(path), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketResults)
		return e
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &ResultCache{db: db}, nil
}

// Close closes the underlying database.
func (c *ResultCache) Close() error { return c.db.Close() }

// Ping verifies the database file is still reachable, for health checks.
func (c *ResultCache) Ping() error {
	return c.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketResults) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}

// Lookup returns the cached result for a scenario fingerprint, if any.
func (c *ResultCache) Lookup(fingerprint string) (*CachedResult, bool) {
	var result *CachedResult
	_ = c.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketResults)
		if bk == nil {
			return nil
		}
		v := bk.Get([]byte(fingerprint))
		if v == nil {
			return nil
		}
		var r CachedResult
		if err := json.Unmarshal(v, &r); err != nil {
			return nil
		}
		result = &r
		return nil
	})
	return result, result != nil
}

// Store records a completed run's results under its scenario fingerprint.
func (c *ResultCache) Store(fingerprint string, result CachedResult) error {
	result.CachedAt = time.Now()
	buf, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketResults)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		return bk.Put([]byte(fingerprint), buf)
	})
}

// GC removes cache entries older than maxAge, returning the count removed.
func (c *ResultCache) GC(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketResults)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		cur := bk.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			var r CachedResult
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			if r.CachedAt.Before(cutoff) {
				if err := cur.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}
