package index

import (
	"iter"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// Snapshot is an immutable view of the index at a single instant.
// Vectors returned by a snapshot are shared with it and must not be modified.
type Snapshot struct {
	modelName string
	dim       int
	ids       []string
	vectors   [][]float32
	positions map[string]int

	graphOnce sync.Once
	graph     *hnsw.Graph[int]
}

func emptySnapshot(modelName string, dim int) *Snapshot {
	return &Snapshot{
		modelName: modelName,
		dim:       dim,
		positions: make(map[string]int),
	}
}

// Len returns the number of subjects in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.ids)
}

// Dim returns the established dimensionality, or the configured one when the snapshot is empty.
// Zero means any length is accepted.
func (s *Snapshot) Dim() int {
	return s.dim
}

// ModelName returns the model the snapshot belongs to.
func (s *Snapshot) ModelName() string {
	return s.modelName
}

// SubjectID returns the subject at position i.
func (s *Snapshot) SubjectID(i int) string {
	return s.ids[i]
}

// Vector returns the vector at position i.
func (s *Snapshot) Vector(i int) []float32 {
	return s.vectors[i]
}

// Lookup returns the vector of a subject.
func (s *Snapshot) Lookup(subjectID string) ([]float32, bool) {
	pos, ok := s.positions[subjectID]
	if !ok {
		return nil, false
	}
	return s.vectors[pos], true
}

// SubjectIDs returns a copy of the subject IDs in insertion order.
func (s *Snapshot) SubjectIDs() []string {
	return slices.Clone(s.ids)
}

// All iterates over (subjectID, vector) pairs in insertion order.
func (s *Snapshot) All() iter.Seq2[string, []float32] {
	return func(yield func(string, []float32) bool) {
		for i, id := range s.ids {
			if !yield(id, s.vectors[i]) {
				return
			}
		}
	}
}
