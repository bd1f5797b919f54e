package core

import (
	"errors"
	"testing"
)

func TestComputeInputHash_Deterministic(t *testing.T) {
	params := map[string]interface{}{"lambda": 0.18, "nstd": 5.0, "bins": 144}
	a := []float64{0, 1, 2, 3}

	h1 := ComputeInputHash(params, a)
	h2 := ComputeInputHash(map[string]interface{}{"bins": 144, "nstd": 5.0, "lambda": 0.18}, a)
	if h1 != h2 {
		t.Errorf("Expected key order to be irrelevant, got %s and %s", h1, h2)
	}
	if len(h1.String()) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(h1.String()))
	}
}

func TestComputeInputHash_SensitiveToInputs(t *testing.T) {
	params := map[string]interface{}{"lambda": 0.18}
	base := ComputeInputHash(params, []float64{0, 1, 2})

	if base == ComputeInputHash(map[string]interface{}{"lambda": 0.2}, []float64{0, 1, 2}) {
		t.Error("Expected parameter change to change the hash")
	}
	if base == ComputeInputHash(params, []float64{0, 1, 2.0000001}) {
		t.Error("Expected value change to change the hash")
	}
	if ComputeInputHash(params, []float64{1, 2}, []float64{3}) == ComputeInputHash(params, []float64{1}, []float64{2, 3}) {
		t.Error("Expected slice boundaries to change the hash")
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsCallerError(NewConfigurationError("lambda_val", "must be positive")) {
		t.Error("Expected configuration error to be a caller error")
	}
	if !IsCallerError(NewBoundsError("NRini=%d", 0)) {
		t.Error("Expected bounds error to be a caller error")
	}
	if !IsCallerError(NewShapeError("SC", 3, 3, 2, 3)) {
		t.Error("Expected shape error to be a caller error")
	}
	fitErr := NewFitError("too few points", errors.New("boom"))
	if !IsFitError(fitErr) || IsCallerError(fitErr) {
		t.Error("Expected fit error to be classified as a fit error only")
	}
	if !IsNotFoundError(ErrRunNotFound) {
		t.Error("Expected ErrRunNotFound to wrap ErrNotFound")
	}
}
