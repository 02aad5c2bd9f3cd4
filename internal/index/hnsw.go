package index

import (
	"math"
	"slices"

	"github.com/coder/hnsw"
)

// Candidates returns up to k snapshot positions close to the query, in ascending position order.
// The HNSW graph is built on first use and lives as long as the snapshot.
// Results are approximate and may miss the true nearest neighbor.
func (s *Snapshot) Candidates(query []float32, k int) []int {
	if k <= 0 || s.Len() == 0 {
		return nil
	}

	s.graphOnce.Do(s.buildGraph)

	neighbors := s.graph.Search(query, k)
	positions := make([]int, 0, len(neighbors))
	for _, n := range neighbors {
		positions = append(positions, n.Key)
	}
	slices.Sort(positions)
	return positions
}

func (s *Snapshot) buildGraph() {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1 / math.Log(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, vec := range s.vectors {
		g.Add(hnsw.MakeNode(i, vec))
	}
	s.graph = g
}
