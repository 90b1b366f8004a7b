package rankindex

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"
)

func TestTreapIndex_BasicOperations(t *testing.T) {
	ctx := context.Background()
	idx := NewTreapIndex()

	// Absent user ranks 0, not an error.
	rank, err := idx.Rank(ctx, "0", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rank != 0 {
		t.Errorf("expected rank 0 for absent user, got %d", rank)
	}

	if err := idx.Upsert(ctx, "0", 1, 100); err != nil {
		t.Fatal(err)
	}
	if rank, _ := idx.Rank(ctx, "0", 1); rank != 1 {
		t.Errorf("expected rank 1, got %d", rank)
	}
	if n := idx.Count("0"); n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
}

func TestTreapIndex_Ordering(t *testing.T) {
	ctx := context.Background()
	idx := NewTreapIndex()

	ratings := map[int64]float64{1: 250, 2: 900, 3: 500, 4: 10}
	for id, pp := range ratings {
		if err := idx.Upsert(ctx, "0", id, pp); err != nil {
			t.Fatal(err)
		}
	}

	want := map[int64]int{2: 1, 3: 2, 1: 3, 4: 4}
	for id, wantRank := range want {
		if rank, _ := idx.Rank(ctx, "0", id); rank != wantRank {
			t.Errorf("user %d rank = %d, want %d", id, rank, wantRank)
		}
	}
}

func TestTreapIndex_ReUpsertMovesUser(t *testing.T) {
	ctx := context.Background()
	idx := NewTreapIndex()

	_ = idx.Upsert(ctx, "0", 1, 100)
	_ = idx.Upsert(ctx, "0", 2, 200)

	// Read-after-write: the user's own rank reflects the new rating.
	_ = idx.Upsert(ctx, "0", 1, 300)
	if rank, _ := idx.Rank(ctx, "0", 1); rank != 1 {
		t.Errorf("expected rank 1 after improvement, got %d", rank)
	}
	if n := idx.Count("0"); n != 2 {
		t.Errorf("re-upsert duplicated the user: count %d", n)
	}
}

func TestTreapIndex_BoardsAreIndependent(t *testing.T) {
	ctx := context.Background()
	idx := NewTreapIndex()

	_ = idx.Upsert(ctx, "0", 1, 100)
	_ = idx.Upsert(ctx, "0:US", 1, 100)
	_ = idx.Upsert(ctx, "0", 2, 200)

	if rank, _ := idx.Rank(ctx, "0", 1); rank != 2 {
		t.Errorf("global rank = %d, want 2", rank)
	}
	if rank, _ := idx.Rank(ctx, "0:US", 1); rank != 1 {
		t.Errorf("country rank = %d, want 1", rank)
	}
}

func TestTreapIndex_RandomizedAgainstSort(t *testing.T) {
	ctx := context.Background()
	idx := NewTreapIndex()
	rng := rand.New(rand.NewSource(1))

	const n = 500
	ratings := make(map[int64]float64, n)
	for i := int64(1); i <= n; i++ {
		pp := float64(rng.Intn(10_000))
		ratings[i] = pp
		if err := idx.Upsert(ctx, "board", i, pp); err != nil {
			t.Fatal(err)
		}
	}

	type pair struct {
		id int64
		pp float64
	}
	sorted := make([]pair, 0, n)
	for id, pp := range ratings {
		sorted = append(sorted, pair{id, pp})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].pp != sorted[j].pp {
			return sorted[i].pp > sorted[j].pp
		}
		return sorted[i].id < sorted[j].id
	})

	for wantRank, p := range sorted {
		rank, err := idx.Rank(ctx, "board", p.id)
		if err != nil {
			t.Fatal(err)
		}
		if rank != wantRank+1 {
			t.Fatalf("user %d (%.0fpp): rank %d, want %d", p.id, p.pp, rank, wantRank+1)
		}
	}
}

func BenchmarkTreapIndex_Rank(b *testing.B) {
	ctx := context.Background()
	idx := NewTreapIndex()
	for i := int64(0); i < 10_000; i++ {
		_ = idx.Upsert(ctx, "bench", i, float64(i%977))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Rank(ctx, "bench", int64(i%10_000))
	}
}

func ExampleTreapIndex() {
	ctx := context.Background()
	idx := NewTreapIndex()
	_ = idx.Upsert(ctx, "0", 1001, 727)
	rank, _ := idx.Rank(ctx, "0", 1001)
	fmt.Println(rank)
	// Output: 1
}
