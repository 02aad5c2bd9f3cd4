package enrollment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/kozaktomas/labface/internal/database"
	"github.com/kozaktomas/labface/internal/database/mock"
	"github.com/kozaktomas/labface/internal/index"
	"github.com/kozaktomas/labface/internal/matcher"
)

const testModel = "face_recognition"

func newCoordinator(dim int) (*Coordinator, *mock.MockEmbeddingStore, *index.Index) {
	store := mock.NewMockEmbeddingStore()
	idx := index.New(testModel, dim)
	models := map[string]int{testModel: dim, "buffalo_l": 4}
	return NewCoordinator(store, idx, models), store, idx
}

func TestEnroll_PersistsThenIndexes(t *testing.T) {
	c, store, idx := newCoordinator(0)
	ctx := context.Background()

	res, err := c.Enroll(ctx, "STU001", []float32{1, 0, 0}, testModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RecordID != 1 {
		t.Errorf("expected record ID 1, got %d", res.RecordID)
	}
	if !res.Indexed {
		t.Error("expected record to be indexed")
	}
	if len(store.Records()) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(store.Records()))
	}
	if _, ok := idx.Snapshot().Lookup("STU001"); !ok {
		t.Error("expected subject in index")
	}

	m := matcher.New(idx)
	match, err := m.Match([]float32{1, 0, 0}, matcher.DefaultThreshold)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !match.Matched || match.SubjectID != "STU001" {
		t.Errorf("expected match immediately after enroll, got %+v", match)
	}
}

func TestEnroll_DefaultsModel(t *testing.T) {
	c, store, _ := newCoordinator(0)

	if _, err := c.Enroll(context.Background(), "A", []float32{1}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.Records()[0].ModelName; got != testModel {
		t.Errorf("expected model %s, got %s", testModel, got)
	}
}

func TestEnroll_NormalizesSubject(t *testing.T) {
	c, _, idx := newCoordinator(0)

	// "e" + combining acute accent, padded
	if _, err := c.Enroll(context.Background(), "  Jose\u0301 ", []float32{1}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := idx.SubjectIDs(); !slices.Equal(got, []string{"Jos\u00e9"}) {
		t.Errorf("expected NFC subject ID, got %q", got)
	}
}

func TestEnroll_DimensionMismatch(t *testing.T) {
	c, store, idx := newCoordinator(5)

	_, err := c.Enroll(context.Background(), "B", []float32{0, 1, 0}, testModel)
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if store.InsertCalls != 0 {
		t.Error("invalid vector must not reach the store")
	}
	if idx.Size() != 0 {
		t.Error("invalid vector must not reach the index")
	}
}

func TestEnroll_EstablishedDimensionMismatch(t *testing.T) {
	c, _, _ := newCoordinator(0)
	ctx := context.Background()

	if _, err := c.Enroll(ctx, "A", []float32{1, 0, 0, 0, 0}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := c.Enroll(ctx, "B", []float32{0, 1, 0}, "")
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnroll_InvalidInput(t *testing.T) {
	c, store, _ := newCoordinator(0)
	ctx := context.Background()

	tests := []struct {
		name    string
		subject string
		vector  []float32
		wantErr error
	}{
		{"empty subject", "   ", []float32{1}, ErrInvalidSubject},
		{"empty vector", "A", []float32{}, index.ErrInvalidVector},
		{"NaN", "A", []float32{float32(math.NaN())}, index.ErrInvalidVector},
		{"Inf", "A", []float32{float32(math.Inf(1))}, index.ErrInvalidVector},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Enroll(ctx, tc.subject, tc.vector, "")
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
	if store.InsertCalls != 0 {
		t.Errorf("expected no store writes, got %d", store.InsertCalls)
	}
}

func TestEnroll_PersistenceFailureLeavesIndexUntouched(t *testing.T) {
	c, store, idx := newCoordinator(0)
	ctx := context.Background()
	if _, err := c.Enroll(ctx, "A", []float32{1, 0}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.InsertError = errors.New("connection refused")
	_, err := c.Enroll(ctx, "B", []float32{0, 1}, "")

	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	var pErr *PersistenceError
	if !errors.As(err, &pErr) || pErr.Op != "insert" {
		t.Errorf("expected insert PersistenceError, got %v", err)
	}
	if _, ok := idx.Snapshot().Lookup("B"); ok {
		t.Error("index must not contain a vector that was not persisted")
	}
	if idx.Size() != 1 {
		t.Errorf("expected index size 1, got %d", idx.Size())
	}
}

func TestEnroll_CancelledContext(t *testing.T) {
	c, _, idx := newCoordinator(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Enroll(ctx, "A", []float32{1}, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if idx.Size() != 0 {
		t.Error("abandoned enroll must not change the index")
	}
}

func TestEnroll_OtherModel(t *testing.T) {
	c, store, idx := newCoordinator(0)
	ctx := context.Background()

	res, err := c.Enroll(ctx, "A", []float32{1, 2, 3, 4}, "buffalo_l")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Indexed {
		t.Error("records of another model must not be indexed")
	}
	if len(store.Records()) != 1 || idx.Size() != 0 {
		t.Errorf("expected persisted-only record, store=%d index=%d", len(store.Records()), idx.Size())
	}

	_, err = c.Enroll(ctx, "A", []float32{1, 2}, "buffalo_l")
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Errorf("expected registered dimension to apply, got %v", err)
	}

	_, err = c.Enroll(ctx, "A", []float32{1}, "arcface")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
}

func TestUnenroll(t *testing.T) {
	c, store, idx := newCoordinator(0)
	ctx := context.Background()
	_, _ = c.Enroll(ctx, "A", []float32{1, 0}, "")
	_, _ = c.Enroll(ctx, "A", []float32{0.9, 0.1}, "")
	_, _ = c.Enroll(ctx, "B", []float32{0, 1}, "")

	res, err := c.Unenroll(ctx, "A", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RemovedCount != 2 {
		t.Errorf("expected 2 rows removed, got %d", res.RemovedCount)
	}
	if !res.Evicted {
		t.Error("expected subject to be evicted")
	}
	if got := idx.SubjectIDs(); !slices.Equal(got, []string{"B"}) {
		t.Errorf("expected [B], got %v", got)
	}
	if len(store.Records()) != 1 {
		t.Errorf("expected 1 record left, got %d", len(store.Records()))
	}

	m := matcher.New(idx)
	match, err := m.Match([]float32{1, 0}, 1.0)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match.SubjectID == "A" {
		t.Error("unenrolled subject must not match")
	}
}

func TestUnenroll_Idempotent(t *testing.T) {
	c, _, _ := newCoordinator(0)

	res, err := c.Unenroll(context.Background(), "ghost", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RemovedCount != 0 || res.Evicted {
		t.Errorf("expected no-op, got %+v", res)
	}
}

func TestUnenroll_EvictsEvenWithoutRows(t *testing.T) {
	c, _, idx := newCoordinator(0)
	_ = idx.Upsert("cached-only", []float32{1})

	res, err := c.Unenroll(context.Background(), "cached-only", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RemovedCount != 0 || !res.Evicted {
		t.Errorf("expected eviction with zero rows, got %+v", res)
	}
}

func TestUnenroll_PersistenceFailure(t *testing.T) {
	c, store, idx := newCoordinator(0)
	_, _ = c.Enroll(context.Background(), "A", []float32{1}, "")
	store.DeleteError = errors.New("deadlock")

	_, err := c.Unenroll(context.Background(), "A", "")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if idx.Size() != 1 {
		t.Error("failed delete must keep the subject indexed")
	}
}

func TestReload(t *testing.T) {
	c, store, idx := newCoordinator(0)
	store.AddRecord(database.VectorRecord{SubjectID: "B", ModelName: testModel, Vector: []float32{0, 1}})
	store.AddRecord(database.VectorRecord{SubjectID: "A", ModelName: testModel, Vector: []float32{1, 0}})
	store.AddRecord(database.VectorRecord{SubjectID: "B", ModelName: testModel, Vector: []float32{0.1, 0.9}})
	store.AddRecord(database.VectorRecord{SubjectID: "X", ModelName: "buffalo_l", Vector: []float32{1, 2, 3, 4}})
	store.AddRecord(database.VectorRecord{SubjectID: "Y", ModelName: testModel, Vector: []float32{1}})

	res, err := c.Reload(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Size != 2 {
		t.Errorf("expected size 2, got %d", res.Size)
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", res.Skipped)
	}
	if got := idx.SubjectIDs(); !slices.Equal(got, []string{"B", "A"}) {
		t.Errorf("expected [B A], got %v", got)
	}
	vec, _ := idx.Snapshot().Lookup("B")
	if vec[1] != 0.9 {
		t.Errorf("expected latest row for B, got %v", vec)
	}
}

func TestReload_Idempotent(t *testing.T) {
	c, store, idx := newCoordinator(0)
	for i := range 5 {
		store.AddRecord(database.VectorRecord{
			SubjectID: fmt.Sprintf("s%d", 4-i),
			ModelName: testModel,
			Vector:    []float32{float32(i), 1},
		})
	}
	ctx := context.Background()

	first, err := c.Reload(ctx)
	if err != nil {
		t.Fatalf("first reload: %v", err)
	}
	firstIDs := idx.SubjectIDs()
	second, err := c.Reload(ctx)
	if err != nil {
		t.Fatalf("second reload: %v", err)
	}

	if first.Size != second.Size {
		t.Errorf("size changed: %d vs %d", first.Size, second.Size)
	}
	if !slices.Equal(firstIDs, idx.SubjectIDs()) {
		t.Errorf("ordering changed: %v vs %v", firstIDs, idx.SubjectIDs())
	}
}

func TestReload_FailureKeepsIndex(t *testing.T) {
	c, store, idx := newCoordinator(0)
	_, _ = c.Enroll(context.Background(), "A", []float32{1}, "")
	store.LoadAllError = errors.New("timeout")

	_, err := c.Reload(context.Background())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("failed reload must not clear the index, size %d", idx.Size())
	}
}

func TestCoordinator_ConcurrentEnrollAndReload(t *testing.T) {
	c, store, idx := newCoordinator(2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Enroll(ctx, fmt.Sprintf("s%d", i), []float32{float32(i), 1}, ""); err != nil {
				t.Errorf("enroll %d: %v", i, err)
			}
		}(i)
		if i%5 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Reload(ctx); err != nil {
					t.Errorf("reload: %v", err)
				}
			}()
		}
	}
	wg.Wait()

	if idx.Size() != 20 {
		t.Errorf("expected every enrolled subject to survive concurrent reloads, got %d", idx.Size())
	}
	if len(store.Records()) != 20 {
		t.Errorf("expected 20 records, got %d", len(store.Records()))
	}
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &PersistenceError{Op: "load", Err: cause})

	if !errors.Is(err, ErrPersistence) {
		t.Error("expected errors.Is to match ErrPersistence")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	want := "wrapped: persistence error during load: boom"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
