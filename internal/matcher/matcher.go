// Package matcher answers "who is this?" queries against the embedding index.
package matcher

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kozaktomas/labface/internal/index"
)

// DefaultThreshold is the maximum distance accepted as a match when callers do not specify one.
const DefaultThreshold = 0.6

var (
	// ErrInvalidThreshold is returned for thresholds outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

	// ErrInvalidK is returned when a neighbor count is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// Reason explains a negative match.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNoKnownSubjects Reason = "no_known_subjects"
	ReasonBelowConfidence Reason = "below_confidence"
)

// Result is the outcome of a single match.
// Distance and Confidence are meaningful unless Reason is ReasonNoKnownSubjects.
type Result struct {
	Matched    bool
	SubjectID  string
	Distance   float64
	Confidence float64 // 1 - Distance, may be negative
	Reason     Reason
}

// Neighbor is one entry of a nearest-neighbor listing.
type Neighbor struct {
	SubjectID  string
	Distance   float64
	Confidence float64
}

// Matcher compares query vectors with the subjects in an index.
type Matcher struct {
	index            *index.Index
	approxMinSize    int
	approxCandidates int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithApproximateSearch seeds Match with HNSW candidates for snapshots with at least minSize subjects.
// The best candidate bounds the scan so most entries are abandoned early; every entry is
// still checked, so results equal the exact scan. A minSize of 0 disables it.
func WithApproximateSearch(minSize, candidates int) Option {
	return func(m *Matcher) {
		m.approxMinSize = minSize
		m.approxCandidates = candidates
	}
}

// New creates a matcher over the index.
func New(idx *index.Index, opts ...Option) *Matcher {
	m := &Matcher{index: idx}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match finds the closest subject to the query and applies the threshold.
// Ties go to the subject that was enrolled first.
func (m *Matcher) Match(query []float32, threshold float64) (Result, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}

	snap, err := m.snapshotFor(query)
	if err != nil {
		return Result{}, err
	}
	if snap.Len() == 0 {
		return Result{Reason: ReasonNoKnownSubjects}, nil
	}

	best, dist := closest(snap, query, m.candidates(snap, query))
	res := Result{
		Distance:   dist,
		Confidence: 1 - dist,
	}
	if dist <= threshold {
		res.Matched = true
		res.SubjectID = snap.SubjectID(best)
	} else {
		res.Reason = ReasonBelowConfidence
	}
	return res, nil
}

// Nearest returns up to k subjects ordered by distance, ties by enrollment order.
// It always scans the whole snapshot.
func (m *Matcher) Nearest(query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	snap, err := m.snapshotFor(query)
	if err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, 0, snap.Len())
	for id, vec := range snap.All() {
		d := index.EuclideanDistance(query, vec)
		neighbors = append(neighbors, Neighbor{SubjectID: id, Distance: d, Confidence: 1 - d})
	}
	slices.SortStableFunc(neighbors, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// snapshotFor validates the query and returns the snapshot to score it against.
func (m *Matcher) snapshotFor(query []float32) (*index.Snapshot, error) {
	if err := index.ValidateVector(query); err != nil {
		return nil, err
	}

	snap := m.index.Snapshot()
	if snap.Len() == 0 {
		return snap, nil
	}
	if err := index.CheckDim(snap.Dim(), query); err != nil {
		return nil, err
	}
	return snap, nil
}

// candidates returns the positions used to seed the scan, or nil.
func (m *Matcher) candidates(snap *index.Snapshot, query []float32) []int {
	if m.approxMinSize <= 0 || m.approxCandidates <= 0 || snap.Len() < m.approxMinSize {
		return nil
	}
	return snap.Candidates(query, m.approxCandidates)
}

// boundSlack keeps entries whose squared distance is within rounding of the current best,
// so equal distances are still resolved by position.
const boundSlack = 1e-9

// closest returns the position and distance of the nearest entry, ties going to the
// earliest position. seed positions are scored first to tighten the bound; the result
// does not depend on them.
func closest(snap *index.Snapshot, query []float32, seed []int) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	limit := math.Inf(1)
	consider := func(i int) {
		sq, ok := index.SquaredDistanceWithin(query, snap.Vector(i), limit)
		if !ok {
			return
		}
		d := math.Sqrt(sq)
		if best < 0 || d < bestDist || (d == bestDist && i < best) {
			best, bestDist = i, d
			limit = sq * (1 + boundSlack)
		}
	}

	for _, i := range seed {
		consider(i)
	}
	for i := range snap.Len() {
		consider(i)
	}
	return best, bestDist
}
