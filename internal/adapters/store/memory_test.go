package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryCollection_FindOne(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	c := db.Collection("maps")

	if _, err := c.FindOne(ctx, M{"md5": "a"}); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}

	if err := c.InsertOne(ctx, M{"md5": "a", "status": int64(2)}); err != nil {
		t.Fatal(err)
	}

	doc, err := c.FindOne(ctx, M{"md5": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if doc["status"] != int64(2) {
		t.Errorf("status = %v, want 2", doc["status"])
	}

	// Returned documents are copies, not aliases.
	doc["status"] = int64(5)
	again, _ := c.FindOne(ctx, M{"md5": "a"})
	if again["status"] != int64(2) {
		t.Error("mutating a returned document leaked into the store")
	}
}

func TestMemoryCollection_FindSortAndLimit(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryDB().Collection("scores")

	for i, pp := range []float64{10, 50, 30, 40, 20} {
		_ = c.InsertOne(ctx, M{"id": int64(i), "pp": pp, "user_id": int64(1)})
	}

	out, err := c.Find(ctx, M{"user_id": int64(1)},
		FindOptions{SortDescBy: "pp", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	want := []float64{50, 40, 30}
	for i, doc := range out {
		if doc["pp"] != want[i] {
			t.Errorf("out[%d].pp = %v, want %v", i, doc["pp"], want[i])
		}
	}
}

func TestMemoryCollection_Operators(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryDB().Collection("scores")

	_ = c.InsertOne(ctx, M{"id": int64(1), "pp": 0.0})
	_ = c.InsertOne(ctx, M{"id": int64(2), "pp": 120.5})
	_ = c.InsertOne(ctx, M{"id": int64(3), "pp": 80.0})

	out, _ := c.Find(ctx, M{"pp": Gt{Value: 0}})
	if len(out) != 2 {
		t.Errorf("Gt matched %d docs, want 2", len(out))
	}

	out, _ = c.Find(ctx, M{"id": In{Values: []any{int64(1), int64(3)}}})
	if len(out) != 2 {
		t.Errorf("In matched %d docs, want 2", len(out))
	}

	// Numeric comparison unifies int and int64.
	n, _ := c.Count(ctx, M{"id": 2})
	if n != 1 {
		t.Errorf("Count with int filter = %d, want 1", n)
	}
}

func TestMemoryCollection_Updates(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryDB().Collection("ustats")

	err := c.UpdateOne(ctx, M{"user_id": int64(1), "mode": int64(0)},
		Update{Set: M{"pp": int64(100)}}, false)
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument without upsert, got %v", err)
	}

	// Upsert seeds the document from the filter equality fields.
	err = c.UpdateOne(ctx, M{"user_id": int64(1), "mode": int64(0)},
		Update{Set: M{"pp": int64(100)}}, true)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := c.FindOne(ctx, M{"user_id": int64(1)})
	if err != nil {
		t.Fatal(err)
	}
	if doc["mode"] != int64(0) || doc["pp"] != int64(100) {
		t.Errorf("upserted doc = %v", doc)
	}

	if err := c.UpdateOne(ctx, M{"user_id": int64(1)},
		Update{Inc: M{"playcount": 1}}, false); err != nil {
		t.Fatal(err)
	}
	doc, _ = c.FindOne(ctx, M{"user_id": int64(1)})
	if toNumber(doc["playcount"]) != 1 {
		t.Errorf("playcount = %v, want 1", doc["playcount"])
	}
}

func TestMemoryCollection_UpdateMany(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryDB().Collection("scores")

	for i := 0; i < 3; i++ {
		_ = c.InsertOne(ctx, M{"id": int64(i), "user_id": int64(7), "status": int64(2)})
	}
	_ = c.InsertOne(ctx, M{"id": int64(9), "user_id": int64(8), "status": int64(2)})

	n, err := c.UpdateMany(ctx, M{"user_id": int64(7), "status": int64(2)},
		Update{Set: M{"status": int64(1)}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("modified %d docs, want 3", n)
	}

	remaining, _ := c.Count(ctx, M{"status": int64(2)})
	if remaining != 1 {
		t.Errorf("%d BEST docs remain, want 1", remaining)
	}
}

func TestMemoryDB_NextID(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	// Sequences are independent and start at 1.
	id, err := db.NextID(ctx, "scores")
	if err != nil || id != 1 {
		t.Fatalf("NextID = %d, %v; want 1", id, err)
	}
	if id, _ := db.NextID(ctx, "logs"); id != 1 {
		t.Errorf("independent sequence started at %d", id)
	}

	// Concurrent draws never collide.
	const n = 200
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for j := 0; j < n; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := db.NextID(ctx, "scores")
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
