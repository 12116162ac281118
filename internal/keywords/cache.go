package keywords

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketKeywords = "keywords"

// ErrCacheMiss is returned by Cache.Get when nothing usable is stored.
var ErrCacheMiss = errors.New("keyword cache miss")

// Cache persists parsed keyword files so that large plugin directories are
// not re-read on every invocation. Entries are keyed by absolute path and
// invalidated when the file's size or modification time changes.
type Cache struct {
	db *bolt.DB
}

type cacheEntry struct {
	ModTime  int64      `json:"mod_time"`
	Size     int64      `json:"size"`
	Keywords []*Keyword `json:"keywords"`
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketKeywords))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(path string) []byte {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return []byte(path)
}

// Get returns the keywords stored for path if info still matches.
func (c *Cache) Get(path string, info fs.FileInfo) ([]*Keyword, error) {
	var entry cacheEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketKeywords)).Get(cacheKey(path))
		if v == nil {
			return ErrCacheMiss
		}
		return json.Unmarshal(v, &entry)
	})
	if err != nil {
		return nil, err
	}
	if entry.Size != info.Size() || entry.ModTime != info.ModTime().UnixNano() {
		return nil, ErrCacheMiss
	}
	return entry.Keywords, nil
}

// Put stores kws for path.
func (c *Cache) Put(path string, info fs.FileInfo, kws []*Keyword) error {
	v, err := json.Marshal(cacheEntry{
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
		Keywords: kws,
	})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketKeywords)).Put(cacheKey(path), v)
	})
}

// Len reports how many files are cached.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketKeywords)).Stats().KeyN
		return nil
	})
	return n, err
}
