package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryDB is an in-memory DB implementation. Collections are created
// lazily on first access. Safe for concurrent use.
type MemoryDB struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
	sequences   map[string]int64
}

// NewMemoryDB creates an empty in-memory database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		collections: make(map[string]*memoryCollection),
		sequences:   make(map[string]int64),
	}
}

// Collection returns the named collection, creating it if needed.
func (db *MemoryDB) Collection(name string) Collection {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.collections[name]
	if !ok {
		c = &memoryCollection{}
		db.collections[name] = c
	}
	return c
}

// NextID atomically advances the named sequence.
func (db *MemoryDB) NextID(ctx context.Context, sequence string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.sequences[sequence]++
	return db.sequences[sequence], nil
}

type memoryCollection struct {
	mu   sync.RWMutex
	docs []M
}

func (c *memoryCollection) FindOne(ctx context.Context, filter M) (M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, doc := range c.docs {
		if matches(doc, filter) {
			return cloneDoc(doc), nil
		}
	}
	return nil, ErrNoDocument
}

func (c *memoryCollection) Find(ctx context.Context, filter M, opts ...FindOptions) ([]M, error) {
	c.mu.RLock()
	var out []M
	for _, doc := range c.docs {
		if matches(doc, filter) {
			out = append(out, cloneDoc(doc))
		}
	}
	c.mu.RUnlock()

	if len(opts) > 0 {
		opt := opts[0]
		if opt.SortDescBy != "" {
			sort.SliceStable(out, func(i, j int) bool {
				return toNumber(out[i][opt.SortDescBy]) > toNumber(out[j][opt.SortDescBy])
			})
		}
		if opt.Limit > 0 && len(out) > opt.Limit {
			out = out[:opt.Limit]
		}
	}
	return out, nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc M) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = append(c.docs, cloneDoc(doc))
	return nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter M, update Update, upsert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range c.docs {
		if matches(doc, filter) {
			applyUpdate(doc, update)
			return nil
		}
	}

	if !upsert {
		return ErrNoDocument
	}

	// Seed the new document from the filter's equality fields.
	doc := M{}
	for k, v := range filter {
		switch v.(type) {
		case Gt, In:
		default:
			doc[k] = v
		}
	}
	applyUpdate(doc, update)
	c.docs = append(c.docs, doc)
	return nil
}

func (c *memoryCollection) UpdateMany(ctx context.Context, filter M, update Update) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	modified := 0
	for _, doc := range c.docs {
		if matches(doc, filter) {
			applyUpdate(doc, update)
			modified++
		}
	}
	return modified, nil
}

func (c *memoryCollection) Count(ctx context.Context, filter M) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, doc := range c.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func applyUpdate(doc M, update Update) {
	for k, v := range update.Set {
		doc[k] = v
	}
	for k, v := range update.Inc {
		doc[k] = toNumber(doc[k]) + toNumber(v)
	}
}

func matches(doc M, filter M) bool {
	for field, want := range filter {
		got, exists := doc[field]
		switch cond := want.(type) {
		case Gt:
			if !exists || toNumber(got) <= cond.Value {
				return false
			}
		case In:
			found := false
			for _, v := range cond.Values {
				if equal(got, v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if !exists || !equal(got, want) {
				return false
			}
		}
	}
	return true
}

// equal compares documents' values, treating all numeric types as one.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if isNumber(a) && isNumber(b) {
		return toNumber(a) == toNumber(b)
	}
	return a == b
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func toNumber(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func cloneDoc(doc M) M {
	out := make(M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
