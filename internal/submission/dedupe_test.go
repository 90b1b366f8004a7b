package submission

import (
	"fmt"
	"sync"
	"testing"
)

func TestChecksumGuard(t *testing.T) {
	t.Run("recording makes a checksum seen", func(t *testing.T) {
		g := newChecksumGuard(8)
		if g.Seen("abc") {
			t.Error("fresh checksum reported as seen")
		}
		g.Record("abc")
		if !g.Seen("abc") {
			t.Error("recorded checksum not reported as seen")
		}
		if g.Size() != 1 {
			t.Errorf("size = %d, want 1", g.Size())
		}
	})

	t.Run("an unrecorded checksum stays retryable", func(t *testing.T) {
		g := newChecksumGuard(8)
		// A failed persist never records, so the same checksum may come
		// through again.
		if g.Seen("retry-me") {
			t.Error("checked-but-unrecorded checksum reported as seen")
		}
		if g.Seen("retry-me") {
			t.Error("second check reported as seen")
		}
	})

	t.Run("re-recording is a no-op", func(t *testing.T) {
		g := newChecksumGuard(8)
		g.Record("abc")
		g.Record("abc")
		if g.Size() != 1 {
			t.Errorf("size = %d, want 1", g.Size())
		}
	})

	t.Run("oldest entry is evicted at capacity", func(t *testing.T) {
		g := newChecksumGuard(3)
		for i := 0; i < 4; i++ {
			g.Record(fmt.Sprintf("sum-%d", i))
		}

		if g.Size() != 3 {
			t.Errorf("size = %d, want 3", g.Size())
		}
		if g.Seen("sum-0") {
			t.Error("evicted checksum still reported as seen")
		}
		if !g.Seen("sum-2") {
			t.Error("retained checksum forgotten")
		}
	})

	t.Run("zero capacity falls back to the default", func(t *testing.T) {
		g := newChecksumGuard(0)
		if g.maxSize != defaultChecksumCacheSize {
			t.Errorf("maxSize = %d, want %d", g.maxSize, defaultChecksumCacheSize)
		}
	})

	t.Run("concurrent recording stays bounded", func(t *testing.T) {
		g := newChecksumGuard(100)
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			w := w
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					g.Record(fmt.Sprintf("w%d-%d", w, i))
				}
			}()
		}
		wg.Wait()
		if g.Size() != 100 {
			t.Errorf("size = %d, want 100", g.Size())
		}
	})
}
