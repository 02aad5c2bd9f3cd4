// Package index holds the in-memory embedding index that the matcher reads.
//
// Writers serialize on a mutex and publish a new immutable Snapshot; readers load the
// current snapshot without locking and scan it at their own pace.
package index

import (
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/labface/internal/database"
)

// LoadStats describes the outcome of a bulk load.
type LoadStats struct {
	Loaded  int // Subjects in the index after the load
	Skipped int // Records dropped for wrong model, invalid values or wrong length
}

// Index maps subject IDs to vectors for a single model.
type Index struct {
	modelName string
	fixedDim  int

	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Snapshot]
}

// New creates an empty index for the model. A dim of 0 lets the first vector establish it.
func New(modelName string, dim int) *Index {
	idx := &Index{
		modelName: modelName,
		fixedDim:  max(dim, 0),
	}
	idx.current.Store(emptySnapshot(modelName, idx.fixedDim))
	return idx
}

// ModelName returns the model this index is scoped to.
func (idx *Index) ModelName() string {
	return idx.modelName
}

// Snapshot returns the current immutable view.
func (idx *Index) Snapshot() *Snapshot {
	return idx.current.Load()
}

// Size returns the number of subjects.
func (idx *Index) Size() int {
	return idx.Snapshot().Len()
}

// SubjectIDs returns the subject IDs in insertion order.
func (idx *Index) SubjectIDs() []string {
	return idx.Snapshot().SubjectIDs()
}

// Dim returns the dimensionality new vectors must have (0 when not yet established).
func (idx *Index) Dim() int {
	return idx.Snapshot().Dim()
}

// Load replaces the whole index with the given records.
// Later records for a subject win but keep the position of the first one.
// Without a configured dimension, the most common vector length among usable records
// becomes the dimension, ties going to the length seen first.
func (idx *Index) Load(records []database.VectorRecord) LoadStats {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	next := emptySnapshot(idx.modelName, idx.fixedDim)
	next.ids = make([]string, 0, len(records))
	next.vectors = make([][]float32, 0, len(records))
	if next.dim == 0 {
		next.dim = idx.dominantDim(records)
	}

	skipped := 0
	for i := range records {
		rec := &records[i]
		if !idx.usable(rec) || rec.Dim() != next.dim {
			skipped++
			continue
		}

		vec := slices.Clone(rec.Vector)
		if pos, ok := next.positions[rec.SubjectID]; ok {
			next.vectors[pos] = vec
			continue
		}
		next.positions[rec.SubjectID] = len(next.ids)
		next.ids = append(next.ids, rec.SubjectID)
		next.vectors = append(next.vectors, vec)
	}

	if len(next.ids) == 0 {
		next.dim = idx.fixedDim
	}
	idx.current.Store(next)

	if skipped > 0 {
		log.Printf("index %s: skipped %d of %d records during load (dimension %d)", idx.modelName, skipped, len(records), next.dim)
	}
	return LoadStats{Loaded: len(next.ids), Skipped: skipped}
}

// usable reports whether a record belongs to this index and carries a valid vector.
func (idx *Index) usable(rec *database.VectorRecord) bool {
	if rec.SubjectID == "" || (rec.ModelName != "" && rec.ModelName != idx.modelName) {
		return false
	}
	return ValidateVector(rec.Vector) == nil
}

// dominantDim returns the most frequent vector length among usable records, 0 when there are none.
func (idx *Index) dominantDim(records []database.VectorRecord) int {
	counts := make(map[int]int)
	var order []int
	for i := range records {
		if !idx.usable(&records[i]) {
			continue
		}
		d := records[i].Dim()
		if counts[d] == 0 {
			order = append(order, d)
		}
		counts[d]++
	}

	best := 0
	for _, d := range order {
		if counts[d] > counts[best] {
			best = d
		}
	}
	if len(order) > 1 {
		log.Printf("index %s: records have %d different lengths, using dimension %d", idx.modelName, len(order), best)
	}
	return best
}

// Upsert inserts or overwrites the vector of a subject.
// An existing subject keeps its position in the insertion order.
func (idx *Index) Upsert(subjectID string, vector []float32) error {
	if subjectID == "" {
		return fmt.Errorf("%w: empty subject ID", ErrInvalidVector)
	}
	if err := ValidateVector(vector); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.current.Load()
	if err := CheckDim(cur.dim, vector); err != nil {
		return err
	}

	next := &Snapshot{
		modelName: cur.modelName,
		dim:       len(vector),
		vectors:   slices.Clone(cur.vectors),
	}
	vec := slices.Clone(vector)

	if pos, ok := cur.positions[subjectID]; ok {
		next.ids = cur.ids
		next.positions = cur.positions
		next.vectors[pos] = vec
	} else {
		next.ids = append(slices.Clip(cur.ids), subjectID)
		next.positions = maps.Clone(cur.positions)
		next.positions[subjectID] = len(cur.ids)
		next.vectors = append(next.vectors, vec)
	}

	idx.current.Store(next)
	return nil
}

// Remove deletes a subject and reports whether it was present.
func (idx *Index) Remove(subjectID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.current.Load()
	pos, ok := cur.positions[subjectID]
	if !ok {
		return false
	}

	next := emptySnapshot(cur.modelName, cur.dim)
	next.ids = slices.Delete(slices.Clone(cur.ids), pos, pos+1)
	next.vectors = slices.Delete(slices.Clone(cur.vectors), pos, pos+1)
	for i, id := range next.ids {
		next.positions[id] = i
	}
	if len(next.ids) == 0 {
		next.dim = idx.fixedDim
	}

	idx.current.Store(next)
	return true
}
