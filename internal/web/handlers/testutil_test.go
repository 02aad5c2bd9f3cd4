package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/labface/internal/database/mock"
	"github.com/kozaktomas/labface/internal/enrollment"
	"github.com/kozaktomas/labface/internal/index"
	"github.com/kozaktomas/labface/internal/matcher"
)

const testModel = "face_recognition"

// fakeEncoder returns a fixed embedding or error and records the images it saw
type fakeEncoder struct {
	vector []float32
	err    error
	images [][]byte
}

func (f *fakeEncoder) EncodeFace(ctx context.Context, imageData []byte) ([]float32, error) {
	f.images = append(f.images, imageData)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// fakeFetcher serves images from a map keyed by URL
type fakeFetcher struct {
	images map[string][]byte
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.images[rawURL], nil
}

// testEnv wires the handlers to an in-memory store and index
type testEnv struct {
	store      *mock.MockEmbeddingStore
	index      *index.Index
	encoder    *fakeEncoder
	fetcher    *fakeFetcher
	embeddings *EmbeddingsHandler
	match      *MatchHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := mock.NewMockEmbeddingStore()
	idx := index.New(testModel, 0)
	coordinator := enrollment.NewCoordinator(store, idx, map[string]int{testModel: 0, "buffalo_l": 4})
	enc := &fakeEncoder{}
	fetcher := &fakeFetcher{images: map[string][]byte{}}

	return &testEnv{
		store:      store,
		index:      idx,
		encoder:    enc,
		fetcher:    fetcher,
		embeddings: NewEmbeddingsHandler(coordinator, idx, store, enc, fetcher),
		match:      NewMatchHandler(matcher.New(idx), enc, fetcher, matcher.DefaultThreshold),
	}
}

// jsonRequest creates a request with a JSON-encoded body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
