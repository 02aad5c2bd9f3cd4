package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/labface/internal/database"
	"github.com/kozaktomas/labface/internal/enrollment"
	"github.com/kozaktomas/labface/internal/index"
)

// EmbeddingsHandler manages enrolled embeddings.
type EmbeddingsHandler struct {
	coordinator *enrollment.Coordinator
	index       *index.Index
	store       database.EmbeddingReader
	faces       faceSource
}

// NewEmbeddingsHandler creates a new embeddings handler
func NewEmbeddingsHandler(c *enrollment.Coordinator, idx *index.Index, store database.EmbeddingReader, enc FaceEncoder, fetcher ImageFetcher) *EmbeddingsHandler {
	return &EmbeddingsHandler{
		coordinator: c,
		index:       idx,
		store:       store,
		faces:       faceSource{encoder: enc, fetcher: fetcher},
	}
}

// EnrollRequest represents an enrollment request
type EnrollRequest struct {
	faceInput
	SubjectID string `json:"subject_id"`
	ModelName string `json:"model_name,omitempty"`
}

// EnrollResponse represents an enrollment response
type EnrollResponse struct {
	RecordID int64 `json:"record_id"`
	Indexed  bool  `json:"indexed"`
}

// UnenrollResponse represents an unenrollment response
type UnenrollResponse struct {
	RemovedCount int64 `json:"removed_count"`
}

// ReloadResponse represents a reload response
type ReloadResponse struct {
	Size    int `json:"size"`
	Skipped int `json:"skipped"`
}

// CountResponse describes the in-memory index
type CountResponse struct {
	Count       int      `json:"count"`
	StoredCount int      `json:"stored_count"`
	SubjectIDs  []string `json:"subject_ids"`
	ModelName   string   `json:"model_name"`
	Dim         int      `json:"dim"`
}

// Create enrolls a subject from a vector or an image.
func (h *EmbeddingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if enrollment.NormalizeSubjectID(req.SubjectID) == "" {
		respondError(w, http.StatusBadRequest, "subject_id is required")
		return
	}

	vector, err := h.faces.resolve(r.Context(), req.faceInput)
	if err != nil {
		log.Printf("Enroll %s: resolving face input: %s", sanitizeForLog(req.SubjectID), sanitizeForLog(err.Error()))
		respondDomainError(w, err)
		return
	}

	result, err := h.coordinator.Enroll(r.Context(), req.SubjectID, vector, req.ModelName)
	if err != nil {
		log.Printf("Enroll %s: %s", sanitizeForLog(req.SubjectID), sanitizeForLog(err.Error()))
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, EnrollResponse{RecordID: result.RecordID, Indexed: result.Indexed})
}

// Delete removes every embedding of a subject.
func (h *EmbeddingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subjectID, err := pathParam(r, "subjectID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid subject ID")
		return
	}
	modelName := r.URL.Query().Get("model_name")

	result, err := h.coordinator.Unenroll(r.Context(), subjectID, modelName)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, UnenrollResponse{RemovedCount: result.RemovedCount})
}

// Reload rebuilds the index from the store.
func (h *EmbeddingsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	result, err := h.coordinator.Reload(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ReloadResponse{Size: result.Size, Skipped: result.Skipped})
}

// Count reports the index size and the enrolled subjects.
func (h *EmbeddingsHandler) Count(w http.ResponseWriter, r *http.Request) {
	snap := h.index.Snapshot()
	resp := CountResponse{
		Count:       snap.Len(),
		StoredCount: -1,
		SubjectIDs:  snap.SubjectIDs(),
		ModelName:   snap.ModelName(),
		Dim:         snap.Dim(),
	}
	if resp.SubjectIDs == nil {
		resp.SubjectIDs = []string{}
	}

	if h.store != nil {
		stored, err := h.store.Count(r.Context(), snap.ModelName())
		if err != nil {
			log.Printf("Count: counting stored embeddings: %v", err)
		} else {
			resp.StoredCount = stored
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
