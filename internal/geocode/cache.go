package geocode

import (
	"context"
	"sync"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
)

const (
	// DefaultPersistSize is how many of the most recent entries are saved.
	DefaultPersistSize = 200
	memoryLimit        = 10000
)

// Result is the outcome of one verification.
type Result struct {
	Location intel.Location `json:"location"`
	Verified bool           `json:"verified"`
}

// Entry is one cached verification.
type Entry struct {
	Key    string
	Result Result
}

// Store persists the most recent cache entries.
type Store interface {
	LoadGeocodeCache(ctx context.Context) ([]Entry, error)
	SaveGeocodeCache(ctx context.Context, entries []Entry) error
}

// Cache is an insertion-ordered verification cache with optional
// write-through persistence of the newest entries.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]Result
	order       []string
	store       Store
	persistSize int
}

// NewCache creates a cache. store may be nil.
func NewCache(store Store, persistSize int) *Cache {
	if persistSize <= 0 {
		persistSize = DefaultPersistSize
	}
	return &Cache{
		entries:     make(map[string]Result),
		store:       store,
		persistSize: persistSize,
	}
}

// Load seeds the cache from the store.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.LoadGeocodeCache(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.setLocked(e.Key, e.Result)
	}
	logging.Debug().Int("entries", len(entries)).Msg("Loaded geocode cache")
	return nil
}

func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

// Put stores r and persists the newest entries. Persistence errors are
// logged and otherwise ignored.
func (c *Cache) Put(ctx context.Context, key string, r Result) {
	c.mu.Lock()
	c.setLocked(key, r)
	snapshot := c.newestLocked(c.persistSize)
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.SaveGeocodeCache(ctx, snapshot); err != nil {
		logging.Warn().Err(err).Msg("Failed to persist geocode cache")
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// setLocked keeps the original insertion position of existing keys.
func (c *Cache) setLocked(key string, r Result) {
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
		if len(c.order) > memoryLimit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = r
}

func (c *Cache) newestLocked(n int) []Entry {
	start := max(0, len(c.order)-n)
	out := make([]Entry, 0, len(c.order)-start)
	for _, k := range c.order[start:] {
		out = append(out, Entry{Key: k, Result: c.entries[k]})
	}
	return out
}
