// Package beatmaps implements the three-tier beatmap resolver: process
// memory, the persistent store, then the external metadata API.
package beatmaps

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

// MetadataSource is the external metadata API boundary. A hash lookup may
// return the whole containing set; the resolver picks the matching map.
type MetadataSource interface {
	ByHash(ctx context.Context, md5 string) ([]*beatmap.Beatmap, error)
	BySet(ctx context.Context, setID int64) ([]*beatmap.Beatmap, error)
}

// Cache owns the process-wide beatmap maps. Initialized empty at process
// start and never torn down mid-run; injected into the components that
// resolve beatmaps rather than living as ambient globals.
type Cache struct {
	mu    sync.RWMutex
	byMD5 map[string]*beatmap.Beatmap
	byID  map[int64]*beatmap.Beatmap
	bySet map[int64][]*beatmap.Beatmap

	db     store.DB
	source MetadataSource
	logger logger.Logger
}

// New creates an empty cache over the given store and metadata source.
func New(db store.DB, source MetadataSource) *Cache {
	return &Cache{
		byMD5:  make(map[string]*beatmap.Beatmap),
		byID:   make(map[int64]*beatmap.Beatmap),
		bySet:  make(map[int64][]*beatmap.Beatmap),
		db:     db,
		source: source,
		logger: logger.Named("beatmaps"),
	}
}

// ResolveByHash resolves a beatmap by content hash through the tiers.
// Returns nil without error when no tier knows the map. A hash resolution
// deliberately never populates the set-level entry: a set is only complete
// in cache once fetched by set id.
func (c *Cache) ResolveByHash(ctx context.Context, md5 string) (*beatmap.Beatmap, error) {
	if bm := c.fromMemory(md5); bm != nil {
		metrics.RecordBeatmapLookup("memory")
		return bm, nil
	}

	if bm, err := c.fromStore(ctx, md5); err != nil {
		return nil, err
	} else if bm != nil {
		metrics.RecordBeatmapLookup("store")
		return c.putMemory(bm), nil
	}

	maps, err := c.source.ByHash(ctx, md5)
	if err != nil {
		// External-service failure degrades to a local miss.
		c.logger.Warn(ctx, "metadata api lookup failed",
			logger.String("md5", md5), logger.Error(err))
		return nil, nil
	}

	var match *beatmap.Beatmap
	for _, bm := range maps {
		// The store miss above already proved the requested hash absent,
		// so only sibling difficulties need the frozen-guard read.
		if bm.MD5 == md5 {
			if err := c.upsertStore(ctx, bm); err != nil {
				return nil, err
			}
			match = bm
			continue
		}
		if err := c.saveToStore(ctx, bm); err != nil {
			return nil, err
		}
	}
	if match == nil {
		metrics.RecordBeatmapLookup("miss")
		return nil, nil
	}
	metrics.RecordBeatmapLookup("api")
	return c.putMemory(match), nil
}

// ResolveBySet resolves every beatmap in a set, populating one memory
// entry per map plus the set-level grouping entry.
func (c *Cache) ResolveBySet(ctx context.Context, setID int64) ([]*beatmap.Beatmap, error) {
	c.mu.RLock()
	cached := c.bySet[setID]
	c.mu.RUnlock()
	if len(cached) > 0 {
		metrics.RecordBeatmapLookup("memory")
		return cached, nil
	}

	docs, err := c.db.Collection(store.Maps).Find(ctx, store.M{"set_id": setID})
	if err != nil {
		return nil, fmt.Errorf("set lookup: %w", err)
	}
	if len(docs) > 0 {
		maps := make([]*beatmap.Beatmap, 0, len(docs))
		for _, doc := range docs {
			bm, err := beatmap.FromDoc(doc)
			if err != nil {
				return nil, err
			}
			maps = append(maps, c.putMemory(bm))
		}
		c.putSet(setID, maps)
		metrics.RecordBeatmapLookup("store")
		return maps, nil
	}

	maps, err := c.source.BySet(ctx, setID)
	if err != nil {
		c.logger.Warn(ctx, "metadata api set lookup failed",
			logger.Int64("set_id", setID), logger.Error(err))
		return nil, nil
	}
	if len(maps) == 0 {
		metrics.RecordBeatmapLookup("miss")
		return nil, nil
	}

	out := make([]*beatmap.Beatmap, 0, len(maps))
	for _, bm := range maps {
		if err := c.saveToStore(ctx, bm); err != nil {
			return nil, err
		}
		out = append(out, c.putMemory(bm))
	}
	c.putSet(setID, out)
	metrics.RecordBeatmapLookup("api")
	return out, nil
}

func (c *Cache) fromMemory(md5 string) *beatmap.Beatmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byMD5[md5]
}

func (c *Cache) fromStore(ctx context.Context, md5 string) (*beatmap.Beatmap, error) {
	doc, err := c.db.Collection(store.Maps).FindOne(ctx, store.M{"md5": md5})
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, nil
		}
		return nil, fmt.Errorf("map lookup: %w", err)
	}
	return beatmap.FromDoc(doc)
}

// putMemory installs a beatmap into the hash and id tiers. A frozen cached
// record is never overwritten by a lower-confidence resolution; the frozen
// one is returned instead.
func (c *Cache) putMemory(bm *beatmap.Beatmap) *beatmap.Beatmap {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byMD5[bm.MD5]; ok && existing.Frozen && !bm.Frozen {
		return existing
	}
	c.byMD5[bm.MD5] = bm
	c.byID[bm.ID] = bm
	return bm
}

func (c *Cache) putSet(setID int64, maps []*beatmap.Beatmap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySet[setID] = maps
}

// saveToStore writes an API-sourced beatmap through to the persistent
// store, upserting by content hash. A frozen stored record is only
// replaced by another frozen one.
func (c *Cache) saveToStore(ctx context.Context, bm *beatmap.Beatmap) error {
	maps := c.db.Collection(store.Maps)

	if existing, err := maps.FindOne(ctx, store.M{"md5": bm.MD5}); err == nil {
		if frozen, _ := existing["frozen"].(bool); frozen && !bm.Frozen {
			return nil
		}
	} else if !errors.Is(err, store.ErrNoDocument) {
		return fmt.Errorf("map upsert check: %w", err)
	}

	return c.upsertStore(ctx, bm)
}

// upsertStore writes the beatmap document without re-reading the stored row. Only
// valid when the caller has just established the stored state.
func (c *Cache) upsertStore(ctx context.Context, bm *beatmap.Beatmap) error {
	err := c.db.Collection(store.Maps).UpdateOne(ctx,
		store.M{"md5": bm.MD5}, store.Update{Set: bm.ToDoc()}, true)
	if err != nil {
		return fmt.Errorf("map upsert: %w", err)
	}
	return nil
}

// Persist writes the beatmap's current document to the store regardless of
// the frozen guard. Used for counter updates and status patches on records
// the cache already owns.
func (c *Cache) Persist(ctx context.Context, bm *beatmap.Beatmap) error {
	err := c.db.Collection(store.Maps).UpdateOne(ctx,
		store.M{"md5": bm.MD5}, store.Update{Set: bm.ToDoc()}, true)
	if err != nil {
		return fmt.Errorf("map persist: %w", err)
	}
	return nil
}

// IncrementCounters bumps the play counters and persists them.
func (c *Cache) IncrementCounters(ctx context.Context, bm *beatmap.Beatmap, passed bool) error {
	bm.Plays++
	if passed {
		bm.Passes++
	}
	err := c.db.Collection(store.Maps).UpdateOne(ctx, store.M{"md5": bm.MD5}, store.Update{
		Set: store.M{"plays": bm.Plays, "passes": bm.Passes},
	}, false)
	if err != nil && !errors.Is(err, store.ErrNoDocument) {
		return fmt.Errorf("map counters: %w", err)
	}
	return nil
}

// ApplyStatus patches a cached beatmap's status from a map-status event,
// marks it frozen and persists the updated record. A miss is a no-op:
// uncached maps pick the new status up on their next store resolution.
func (c *Cache) ApplyStatus(ctx context.Context, md5 string, status beatmap.RankedStatus) error {
	bm := c.fromMemory(md5)
	if bm == nil {
		return nil
	}

	bm.Status = status
	bm.Frozen = true
	return c.Persist(ctx, bm)
}

// Cached returns every beatmap currently in the hash tier. Used by the
// invalidation handlers to patch live leaderboards.
func (c *Cache) Cached() []*beatmap.Beatmap {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*beatmap.Beatmap, 0, len(c.byMD5))
	for _, bm := range c.byMD5 {
		out = append(out, bm)
	}
	return out
}
