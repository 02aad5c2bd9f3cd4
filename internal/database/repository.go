package database

import (
	"context"
)

// EmbeddingReader provides read-only access to enrolled embeddings
type EmbeddingReader interface {
	// LoadAll returns every record for the model, oldest first
	LoadAll(ctx context.Context, modelName string) ([]VectorRecord, error)
	// Count returns the number of stored records for the model
	Count(ctx context.Context, modelName string) (int, error)
}

// EmbeddingStore is the durable source of truth for enrolled embeddings.
// A subject may have several rows; the in-memory index keeps only the latest one.
type EmbeddingStore interface {
	EmbeddingReader

	// Insert stores a new record and returns its ID
	Insert(ctx context.Context, record *VectorRecord) (int64, error)

	// DeleteBySubject removes all rows of a subject for the model and returns how many were deleted
	DeleteBySubject(ctx context.Context, subjectID, modelName string) (int64, error)

	// Close releases the underlying connection pool
	Close() error
}
