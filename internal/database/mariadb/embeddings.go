package mariadb

import (
	"context"
	"fmt"
	"log"

	"github.com/kozaktomas/labface/internal/database"
)

// EmbeddingStore reads and writes the LabFace embeddings table, where vectors are JSON lists.
type EmbeddingStore struct {
	pool *Pool
}

// NewEmbeddingStore creates a new MariaDB embedding store
func NewEmbeddingStore(pool *Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

// LoadAll returns every stored embedding of the model, oldest first.
// Rows whose vector column cannot be decoded are logged and skipped.
func (s *EmbeddingStore) LoadAll(ctx context.Context, modelName string) ([]database.VectorRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, student_id, model_name, vector, created_at
		FROM embeddings
		WHERE model_name = ?
		ORDER BY id
	`, modelName)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var records []database.VectorRecord
	for rows.Next() {
		var rec database.VectorRecord
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.ModelName, &raw, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vec, err := decodeVector(raw)
		if err != nil {
			log.Printf("Skipping embedding %d for %s: %v", rec.ID, rec.SubjectID, err)
			continue
		}
		rec.Vector = vec
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
	err := s.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings WHERE model_name = ?", modelName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// Insert stores a new embedding row and sets its ID.
func (s *EmbeddingStore) Insert(ctx context.Context, record *database.VectorRecord) (int64, error) {
	data, err := encodeVector(record.Vector)
	if err != nil {
		return 0, err
	}

	result, err := s.pool.db.ExecContext(ctx,
		"INSERT INTO embeddings (student_id, model_name, vector) VALUES (?, ?, ?)",
		record.SubjectID, record.ModelName, data,
	)
	if err != nil {
		return 0, fmt.Errorf("insert embedding: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	record.ID = id
	return id, nil
}

// DeleteBySubject removes every embedding row of the student for the model.
func (s *EmbeddingStore) DeleteBySubject(ctx context.Context, subjectID, modelName string) (int64, error) {
	result, err := s.pool.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE student_id = ? AND model_name = ?",
		subjectID, modelName,
	)
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
