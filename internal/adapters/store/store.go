// Package store defines the generic document-collection interface the core
// consumes, plus an in-memory implementation for tests and local runs.
//
// The persistent store's internal engine is an external collaborator; only
// the CRUD verbs used by the core are modeled here.
package store

import "context"

// M is a document or filter. Filter values match by equality unless they
// are one of the operator types below.
type M = map[string]any

// Gt matches documents whose field is numerically greater than Value.
type Gt struct {
	Value float64
}

// In matches documents whose field equals any of Values.
type In struct {
	Values []any
}

// Update describes a partial document update.
type Update struct {
	// Set assigns fields.
	Set M
	// Inc adds to numeric fields.
	Inc M
}

// FindOptions tune Find queries.
type FindOptions struct {
	// SortDescBy orders results descending by a numeric field when set.
	SortDescBy string
	// Limit caps the result count when positive.
	Limit int
}

// Collection provides generic document access for one named collection.
type Collection interface {
	// FindOne returns the first matching document or ErrNoDocument.
	FindOne(ctx context.Context, filter M) (M, error)

	// Find returns all matching documents, optionally sorted and limited.
	Find(ctx context.Context, filter M, opts ...FindOptions) ([]M, error)

	// InsertOne appends a document.
	InsertOne(ctx context.Context, doc M) error

	// UpdateOne applies update to the first matching document. With upsert,
	// a missing document is created from the filter's equality fields plus
	// the update's Set fields.
	UpdateOne(ctx context.Context, filter M, update Update, upsert bool) error

	// UpdateMany applies update to every matching document and returns the
	// number of documents modified.
	UpdateMany(ctx context.Context, filter M, update Update) (int, error)

	// Count returns the number of matching documents.
	Count(ctx context.Context, filter M) (int, error)
}

// DB groups named collections and the id sequence generator.
type DB interface {
	Collection(name string) Collection

	// NextID atomically advances and returns the named sequence, starting
	// at 1. Serialized at the persistence layer so concurrent submissions
	// never observe duplicate ids.
	NextID(ctx context.Context, sequence string) (int64, error)
}

// Collection names consumed by the core.
const (
	Maps    = "maps"
	Scores  = "scores"
	Users   = "users"
	Ratings = "ratings"
	UStats  = "ustats"
	Logs    = "logs"
)
