package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/labface/internal/encoder"
	"github.com/kozaktomas/labface/internal/matcher"
)

// reasonNoFace is reported when the submitted image has no detectable face.
const reasonNoFace = "no_face_detected"

// MatchHandler answers identification requests against the in-memory index.
type MatchHandler struct {
	matcher          *matcher.Matcher
	faces            faceSource
	defaultThreshold float64
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(m *matcher.Matcher, enc FaceEncoder, fetcher ImageFetcher, defaultThreshold float64) *MatchHandler {
	return &MatchHandler{
		matcher:          m,
		faces:            faceSource{encoder: enc, fetcher: fetcher},
		defaultThreshold: defaultThreshold,
	}
}

// MatchRequest represents a face match request
type MatchRequest struct {
	faceInput
	Threshold *float64 `json:"threshold,omitempty"`
}

// MatchResponse represents the face match response
type MatchResponse struct {
	Matched    bool     `json:"matched"`
	SubjectID  string   `json:"subject_id,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
}

// Match identifies the closest enrolled subject for a vector or an image.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	threshold := h.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	query, err := h.faces.resolve(r.Context(), req.faceInput)
	if errors.Is(err, encoder.ErrNoFace) {
		respondJSON(w, http.StatusOK, MatchResponse{Matched: false, Reason: reasonNoFace})
		return
	}
	if err != nil {
		log.Printf("Match: resolving face input: %s", sanitizeForLog(err.Error()))
		respondDomainError(w, err)
		return
	}

	result, err := h.matcher.Match(query, threshold)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := MatchResponse{
		Matched: result.Matched,
		Reason:  string(result.Reason),
	}
	if result.Reason != matcher.ReasonNoKnownSubjects {
		distance, confidence := result.Distance, result.Confidence
		resp.Distance = &distance
		resp.Confidence = &confidence
	}
	if result.Matched {
		resp.SubjectID = result.SubjectID
		resp.ImageURL = req.ImageURL
	}
	respondJSON(w, http.StatusOK, resp)
}
