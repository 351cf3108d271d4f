package rangeserver

import (
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ndrandal/tickvis/internal/columnfile"
)

const cacheSize = 100

// CacheKey identifies one memory-mapped column file.
type CacheKey struct {
	Exchange string
	Symbol   string
	DataType columnfile.Category
	Column   string
	Day      string // DateSuffix, DD.MM.YY
}

// Cache bounds the number of simultaneously-mapped column files to
// cacheSize, evicting the least-recently-used mapping and unmapping it on
// eviction. "Today" files are never inserted here: they are still being
// appended to by the ingestion path and would hand out a stale mapping.
type Cache struct {
	root string
	mu   sync.Mutex
	lru  *lru.Cache[CacheKey, *MappedColumn]
}

// NewCache builds a bounded mmap cache rooted at the same data directory
// the ingestion side writes into.
func NewCache(root string) *Cache {
	c := &Cache{root: root}
	l, err := lru.NewWithEvict(cacheSize, func(key CacheKey, value *MappedColumn) {
		if err := value.Close(); err != nil {
			log.Printf("rangeserver: unmap %+v: %v", key, err)
		}
	})
	if err != nil {
		// Only returns an error for a non-positive size, which cacheSize
		// never is.
		panic(err)
	}
	c.lru = l
	return c
}

// IsToday reports whether day (DateSuffix) names the current UTC date,
// the one boundary excluded from caching since today's files are still
// being actively written.
func IsToday(day string) bool {
	return day == columnfile.DateSuffix(time.Now().UTC())
}

// Get returns the mapped column for key, opening and inserting it into the
// cache if absent. Columns for the current day are mapped fresh on every
// call and never cached.
func (c *Cache) Get(key CacheKey) (*MappedColumn, error) {
	if IsToday(key.Day) {
		return c.open(key)
	}

	c.mu.Lock()
	if mc, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		return mc, nil
	}
	c.mu.Unlock()

	mc, err := c.open(key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		mc.Close()
		return existing, nil
	}
	c.lru.Add(key, mc)
	c.mu.Unlock()
	return mc, nil
}

func (c *Cache) open(key CacheKey) (*MappedColumn, error) {
	day, err := columnfile.ParseDateSuffix(key.Day)
	if err != nil {
		return nil, err
	}
	path := columnfile.Path(c.root, key.Exchange, key.Symbol, key.DataType, key.Column, day)
	return mapColumnFile(path, columnfile.RecordSizeFor(key.Column))
}

// Purge evicts and unmaps every cached entry. Used on server shutdown.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len reports the number of currently cached mappings, for status/metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
