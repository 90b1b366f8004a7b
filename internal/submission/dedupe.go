package submission

import (
	"sync"
	"sync/atomic"
)

// checksumGuard tracks recently accepted score checksums so duplicate
// resubmissions are rejected without a store round trip. Bounded: once
// maxSize checksums are held the oldest is evicted, at which point the
// persistent-store duplicate check is the backstop.
type checksumGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
	size    atomic.Int64
}

const defaultChecksumCacheSize = 50_000

func newChecksumGuard(maxSize int) *checksumGuard {
	if maxSize <= 0 {
		maxSize = defaultChecksumCacheSize
	}
	return &checksumGuard{
		seen:    make(map[string]struct{}, maxSize),
		maxSize: maxSize,
	}
}

// Seen reports whether checksum has been recorded.
func (g *checksumGuard) Seen(checksum string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[checksum]
	return ok
}

// Record remembers checksum, evicting the oldest entry at capacity.
// Callers record only after the score insert commits, so a submission
// that failed to persist stays retryable. Re-recording is a no-op.
func (g *checksumGuard) Record(checksum string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[checksum]; ok {
		return
	}

	if len(g.order) >= g.maxSize {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
		g.size.Add(-1)
	}

	g.seen[checksum] = struct{}{}
	g.order = append(g.order, checksum)
	g.size.Add(1)
}

// Size returns the number of checksums currently held.
func (g *checksumGuard) Size() int64 {
	return g.size.Load()
}
