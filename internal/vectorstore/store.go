package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Fetch when no record has the requested id.
	ErrNotFound = errors.New("vector record not found")

	// ErrNestedMetadata is returned when a metadata value is not a flat scalar.
	ErrNestedMetadata = errors.New("metadata values must be flat scalars")
)

// Metadata is the flat key/value payload stored next to a vector.
// Values are strings, numbers or booleans. Nested structures must be
// JSON-encoded into a string by the caller.
type Metadata map[string]any

// String returns the value under key as a string, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Record is a vector plus its metadata, addressed by id within a partition.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a single query hit.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Store is the vector index interface. Partitions are logical namespaces;
// an id is unique only within its partition.
type Store interface {
	// Upsert writes rec into partition, overwriting any record with the same id.
	Upsert(ctx context.Context, partition string, rec Record) error

	// Query returns up to topK nearest neighbours of vector, best first.
	// A nil filter matches every record in the partition.
	Query(ctx context.Context, partition string, vector []float32, topK int, filter *Filter) ([]Match, error)

	// Fetch looks a record up by id. It returns ErrNotFound when absent.
	Fetch(ctx context.Context, partition, id string) (Record, error)

	// Health checks if the store is reachable.
	Health(ctx context.Context) error
}

// ValidateMetadata rejects values that are not flat scalars.
func ValidateMetadata(md Metadata) error {
	for k, v := range md {
		switch v.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("%w: key %q has type %T", ErrNestedMetadata, k, v)
		}
	}
	return nil
}
