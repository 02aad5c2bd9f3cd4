package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/labface/internal/encoder"
	"github.com/kozaktomas/labface/internal/enrollment"
	"github.com/kozaktomas/labface/internal/imagesource"
	"github.com/kozaktomas/labface/internal/index"
	"github.com/kozaktomas/labface/internal/matcher"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// serviceName is reported by the health check.
const serviceName = "labface"

// maxRequestBody bounds JSON request bodies, inline base64 images included.
const maxRequestBody = 32 << 20

// FaceEncoder turns an image into the embedding of its first face.
type FaceEncoder interface {
	EncodeFace(ctx context.Context, imageData []byte) ([]float32, error)
}

// ImageFetcher downloads an image referenced by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// pathParam returns a decoded URL parameter. chi matches against the escaped path
// whenever the request carries one, and then leaves the parameter escaped.
func pathParam(r *http.Request, key string) (string, error) {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

// decodeJSON decodes a bounded request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, index.ErrInvalidVector),
		errors.Is(err, index.ErrDimensionMismatch),
		errors.Is(err, matcher.ErrInvalidThreshold),
		errors.Is(err, matcher.ErrInvalidK),
		errors.Is(err, enrollment.ErrInvalidSubject),
		errors.Is(err, enrollment.ErrUnknownModel),
		errors.Is(err, imagesource.ErrInvalidSource),
		errors.Is(err, imagesource.ErrNotFound),
		errors.Is(err, encoder.ErrInvalidImage),
		errors.Is(err, encoder.ErrNoFace),
		errors.Is(err, errMissingInput):
		return http.StatusBadRequest
	case errors.Is(err, enrollment.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, imagesource.ErrFetch),
		errors.Is(err, errEncoder):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with the status statusForError picks for it.
func respondDomainError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}
