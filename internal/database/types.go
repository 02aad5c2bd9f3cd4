package database

import (
	"time"
)

// VectorRecord is one enrolled face embedding as stored in the database.
type VectorRecord struct {
	ID        int64 // Assigned by the store on insert
	SubjectID string
	ModelName string
	Vector    []float32
	CreatedAt time.Time
}

// Dim returns the vector length.
func (r *VectorRecord) Dim() int {
	return len(r.Vector)
}
