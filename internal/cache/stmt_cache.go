// Package cache memoises synthesized statement sets per record type.
package cache

import (
	"reflect"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/coregx/entities/internal/sqlgen"
)

// Key identifies one statement set: a record type rendered for one dialect.
type Key struct {
	Type    reflect.Type
	Dialect string
}

func (k Key) String() string {
	if k.Type == nil {
		return "<nil>@" + k.Dialect
	}
	return k.Type.PkgPath() + "." + k.Type.String() + "@" + k.Dialect
}

// StmtCache stores statement sets for the lifetime of its owner. Entries are
// never evicted; the number of record types in use is small and fixed.
//
// Synthesis is deterministic, so concurrent first use could safely rebuild;
// builds are still collapsed per key so each set is synthesized once.
type StmtCache struct {
	mu    sync.RWMutex
	items map[Key]*sqlgen.Statements
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	builds atomic.Uint64
}

// NewStmtCache creates an empty statement cache.
func NewStmtCache() *StmtCache {
	return &StmtCache{items: make(map[Key]*sqlgen.Statements)}
}

// Get retrieves a statement set by key.
func (sc *StmtCache) Get(key Key) (*sqlgen.Statements, bool) {
	sc.mu.RLock()
	s, ok := sc.items[key]
	sc.mu.RUnlock()

	if ok {
		sc.hits.Add(1)
	} else {
		sc.misses.Add(1)
	}
	return s, ok
}

// GetOrBuild returns the cached set for key, calling build on a miss.
// Failed builds are not cached.
func (sc *StmtCache) GetOrBuild(key Key, build func() (*sqlgen.Statements, error)) (*sqlgen.Statements, error) {
	if s, ok := sc.Get(key); ok {
		return s, nil
	}

	v, err, _ := sc.group.Do(key.String(), func() (interface{}, error) {
		sc.mu.RLock()
		s, ok := sc.items[key]
		sc.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := build()
		if err != nil {
			return nil, err
		}
		sc.builds.Add(1)

		sc.mu.Lock()
		sc.items[key] = s
		sc.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sqlgen.Statements), nil
}

// Clear removes all cached statement sets.
func (sc *StmtCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.items = make(map[Key]*sqlgen.Statements)
}

// Stats is a snapshot of cache counters. Builds counts successful
// syntheses; it equals Size unless Clear was called.
type Stats struct {
	Size    int
	Hits    uint64
	Misses  uint64
	Builds  uint64
	HitRate float64 // hits / (hits + misses)
}

// Stats returns a snapshot of the counters.
func (sc *StmtCache) Stats() Stats {
	sc.mu.RLock()
	size := len(sc.items)
	sc.mu.RUnlock()

	hits := sc.hits.Load()
	misses := sc.misses.Load()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:    size,
		Hits:    hits,
		Misses:  misses,
		Builds:  sc.builds.Load(),
		HitRate: hitRate,
	}
}
