// Package enrollment keeps the embedding store and the in-memory index consistent.
//
// Every mutation writes to the store first and touches the index only after the store
// accepted it, so the index never holds a vector that was not durably recorded.
package enrollment

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/kozaktomas/labface/internal/database"
	"github.com/kozaktomas/labface/internal/index"
)

// EnrollResult is returned by a successful Enroll.
type EnrollResult struct {
	RecordID int64
	Indexed  bool // false when the record belongs to a model other than the index's
}

// UnenrollResult is returned by Unenroll.
type UnenrollResult struct {
	RemovedCount int64 // Store rows deleted
	Evicted      bool  // Whether the subject was present in the index
}

// ReloadResult is returned by Reload.
type ReloadResult struct {
	Size    int
	Skipped int
}

// Coordinator orchestrates enroll, unenroll and reload against the store and the index.
type Coordinator struct {
	store  database.EmbeddingStore
	index  *index.Index
	models map[string]int // model name -> fixed dimension, 0 when unknown

	mu sync.Mutex // serializes mutations across store and index
}

// NewCoordinator creates a coordinator. models maps registered model names to their dimensionality.
func NewCoordinator(store database.EmbeddingStore, idx *index.Index, models map[string]int) *Coordinator {
	if models == nil {
		models = map[string]int{}
	}
	return &Coordinator{
		store:  store,
		index:  idx,
		models: models,
	}
}

// ModelName returns the model of the managed index.
func (c *Coordinator) ModelName() string {
	return c.index.ModelName()
}

// Enroll persists a new embedding for a subject and then publishes it to the index.
// An empty modelName means the index's model.
func (c *Coordinator) Enroll(ctx context.Context, subjectID string, vector []float32, modelName string) (EnrollResult, error) {
	subjectID = NormalizeSubjectID(subjectID)
	if subjectID == "" {
		return EnrollResult{}, ErrInvalidSubject
	}
	if modelName == "" {
		modelName = c.index.ModelName()
	}
	if err := index.ValidateVector(vector); err != nil {
		return EnrollResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	indexed := modelName == c.index.ModelName()
	expected := c.index.Dim()
	if !indexed {
		dim, ok := c.models[modelName]
		if !ok {
			return EnrollResult{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
		}
		expected = dim
	}
	if err := index.CheckDim(expected, vector); err != nil {
		return EnrollResult{}, err
	}

	rec := &database.VectorRecord{
		SubjectID: subjectID,
		ModelName: modelName,
		Vector:    vector,
	}
	id, err := c.store.Insert(ctx, rec)
	if err != nil {
		return EnrollResult{}, &PersistenceError{Op: "insert", Err: err}
	}

	if indexed {
		if err := c.index.Upsert(subjectID, vector); err != nil {
			return EnrollResult{RecordID: id}, fmt.Errorf("indexing record %d: %w", id, err)
		}
	}

	log.Printf("Created embedding for subject %s (record %d, model %s)", subjectID, id, modelName)
	return EnrollResult{RecordID: id, Indexed: indexed}, nil
}

// Unenroll deletes every stored row of the subject for the model and evicts it from the index.
// Deleting an unknown subject is not an error.
func (c *Coordinator) Unenroll(ctx context.Context, subjectID, modelName string) (UnenrollResult, error) {
	subjectID = NormalizeSubjectID(subjectID)
	if subjectID == "" {
		return UnenrollResult{}, ErrInvalidSubject
	}
	if modelName == "" {
		modelName = c.index.ModelName()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.store.DeleteBySubject(ctx, subjectID, modelName)
	if err != nil {
		return UnenrollResult{}, &PersistenceError{Op: "delete", Err: err}
	}

	var evicted bool
	if modelName == c.index.ModelName() {
		evicted = c.index.Remove(subjectID)
	}

	log.Printf("Deleted %d embeddings for subject %s (model %s)", removed, subjectID, modelName)
	return UnenrollResult{RemovedCount: removed, Evicted: evicted}, nil
}

// Reload rebuilds the index from the store. On failure the index keeps its previous state.
func (c *Coordinator) Reload(ctx context.Context) (ReloadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.store.LoadAll(ctx, c.index.ModelName())
	if err != nil {
		return ReloadResult{}, &PersistenceError{Op: "load", Err: err}
	}

	stats := c.index.Load(records)
	log.Printf("Loaded %d embeddings from database (%d rows, %d skipped)", stats.Loaded, len(records), stats.Skipped)
	return ReloadResult{Size: stats.Loaded, Skipped: stats.Skipped}, nil
}
