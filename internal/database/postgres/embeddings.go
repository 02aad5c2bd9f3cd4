package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/labface/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingStore provides PostgreSQL-backed embedding storage using a pgvector column.
type EmbeddingStore struct {
	pool *Pool
}

// NewEmbeddingStore creates a new PostgreSQL embedding store
func NewEmbeddingStore(pool *Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

// LoadAll returns every stored embedding of the model, oldest first.
func (s *EmbeddingStore) LoadAll(ctx context.Context, modelName string) ([]database.VectorRecord, error) {
	query := `
		SELECT id, subject_id, model_name, vector, created_at
		FROM embeddings
		WHERE model_name = $1
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, modelName)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var records []database.VectorRecord
	for rows.Next() {
		var rec database.VectorRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.ModelName, &vec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		rec.Vector = vec.Slice()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return records, nil
}

// Count returns the number of stored embeddings of the model
func (s *EmbeddingStore) Count(ctx context.Context, modelName string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings WHERE model_name = $1", modelName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// Insert stores a new embedding row and sets its ID and creation time.
func (s *EmbeddingStore) Insert(ctx context.Context, record *database.VectorRecord) (int64, error) {
	query := `
		INSERT INTO embeddings (subject_id, model_name, vector)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		record.SubjectID,
		record.ModelName,
		pgvector.NewVector(record.Vector),
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert embedding: %w", err)
	}
	return record.ID, nil
}

// DeleteBySubject removes every embedding row of the subject for the model.
func (s *EmbeddingStore) DeleteBySubject(ctx context.Context, subjectID, modelName string) (int64, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM embeddings WHERE subject_id = $1 AND model_name = $2", subjectID, modelName)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Close closes the underlying pool
func (s *EmbeddingStore) Close() error {
	return s.pool.Close()
}

var _ database.EmbeddingStore = (*EmbeddingStore)(nil)
