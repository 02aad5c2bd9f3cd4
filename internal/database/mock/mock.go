// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/labface/internal/database"
)

// MockEmbeddingStore is an in-memory implementation of database.EmbeddingStore
type MockEmbeddingStore struct {
	mu      sync.RWMutex
	records []database.VectorRecord
	nextID  int64
	closed  bool

	// Error injection
	LoadAllError error
	CountError   error
	InsertError  error
	DeleteError  error

	// Call counters
	LoadAllCalls int
	InsertCalls  int
	DeleteCalls  int
}

// NewMockEmbeddingStore creates a new mock embedding store
func NewMockEmbeddingStore() *MockEmbeddingStore {
	return &MockEmbeddingStore{nextID: 1}
}

// AddRecord stores a record directly, bypassing error injection, and returns its ID
func (m *MockEmbeddingStore) AddRecord(rec database.VectorRecord) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(rec)
}

func (m *MockEmbeddingStore) addLocked(rec database.VectorRecord) int64 {
	rec.ID = m.nextID
	m.nextID++
	rec.Vector = slices.Clone(rec.Vector)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, rec)
	return rec.ID
}

// Records returns a copy of every stored record
func (m *MockEmbeddingStore) Records() []database.VectorRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// Closed reports whether Close was called
func (m *MockEmbeddingStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// LoadAll returns all records for the model in insertion order
func (m *MockEmbeddingStore) LoadAll(ctx context.Context, modelName string) ([]database.VectorRecord, error) {
	m.mu.Lock()
	m.LoadAllCalls++
	m.mu.Unlock()

	if m.LoadAllError != nil {
		return nil, m.LoadAllError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.VectorRecord
	for _, rec := range m.records {
		if rec.ModelName == modelName {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of records for the model
func (m *MockEmbeddingStore) Count(ctx context.Context, modelName string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.records {
		if rec.ModelName == modelName {
			count++
		}
	}
	return count, nil
}

// Insert stores a record and assigns it an ID
func (m *MockEmbeddingStore) Insert(ctx context.Context, record *database.VectorRecord) (int64, error) {
	m.mu.Lock()
	m.InsertCalls++
	m.mu.Unlock()

	if m.InsertError != nil {
		return 0, m.InsertError
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.addLocked(*record)
	record.ID = id
	return id, nil
}

// DeleteBySubject removes all rows for a subject and model
func (m *MockEmbeddingStore) DeleteBySubject(ctx context.Context, subjectID, modelName string) (int64, error) {
	m.mu.Lock()
	m.DeleteCalls++
	m.mu.Unlock()

	if m.DeleteError != nil {
		return 0, m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.records)
	m.records = slices.DeleteFunc(m.records, func(rec database.VectorRecord) bool {
		return rec.SubjectID == subjectID && rec.ModelName == modelName
	})
	return int64(before - len(m.records)), nil
}

// Close marks the store as closed
func (m *MockEmbeddingStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Verify interface compliance
var _ database.EmbeddingStore = (*MockEmbeddingStore)(nil)
