package apperror

import (
	"errors"
	"fmt"
	"testing"
)

var errSample = Conflict("sample_conflict", "sample conflict")

func TestSentinelSurvivesDetailAndWrap(t *testing.T) {
	cause := errors.New("db down")
	err := fmt.Errorf("save: %w", errSample.WithDetail("existingId", int64(4)).Wrap(cause))

	if !errors.Is(err, errSample) {
		t.Fatal("expected errors.Is to match sentinel")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach wrapped cause")
	}
	appErr, ok := As(err)
	if !ok {
		t.Fatal("expected app error")
	}
	if appErr.Details["existingId"] != int64(4) {
		t.Fatalf("expected detail, got %+v", appErr.Details)
	}
	if len(errSample.Details) != 0 {
		t.Fatal("sentinel must not be mutated by WithDetail")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("expected internal kind for plain errors")
	}
	if KindOf(fmt.Errorf("x: %w", NotFound("missing", "missing"))) != KindNotFound {
		t.Fatal("expected not found kind")
	}
	if errors.Is(Validation("a", "a"), Validation("b", "b")) {
		t.Fatal("different codes must not match")
	}
}
