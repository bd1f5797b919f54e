package models

import (
	"math"
	"testing"
	"time"

	"neurodyn/domain/core"
	"neurodyn/domain/run"
)

func TestJSONB_ValueScanRoundTrip(t *testing.T) {
	in := NewJSONB([]run.Edge{{P: 0, Q: 3, Weight: 0.875}})
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var out JSONB[[]run.Edge]
	if err := out.Scan(raw); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(out.V) != 1 || out.V[0].Q != 3 || out.V[0].Weight != 0.875 {
		t.Errorf("Unexpected edges after scan: %+v", out.V)
	}

	if err := out.Scan(nil); err != nil || out.V != nil {
		t.Errorf("Expected nil scan to reset value, got %+v (%v)", out.V, err)
	}
	if err := out.Scan(42); err == nil {
		t.Error("Expected error scanning an int")
	}
}

func TestRunRecord_Conversion(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &run.Result{
		ID:           "0190c8e2-7b1a-7cc0-9a55-0d9d6f6a1a10",
		SubjectID:    "002_S_0413",
		Group:        core.GroupHC,
		Fingerprint:  "abc",
		Params:       run.DefaultParams(),
		Regions:      379,
		FittedLambda: 0.17,
		Lambda:       0.17,
		Bins:         []run.BinRow{{Bin: 1, Mean: run.Stat(math.NaN())}},
		Connections:  12,
		TotalPairs:   379 * 378,
		CreatedAt:    core.NewTimestamp(created),
	}

	rec := NewRunRecord(res)
	if rec.GroupLabel != "HC" || rec.CreatedAt != created {
		t.Errorf("Unexpected record: %+v", rec)
	}

	// the bins column must survive NaN statistics
	raw, err := rec.Bins.Value()
	if err != nil {
		t.Fatalf("Bins Value failed: %v", err)
	}
	if err := rec.Bins.Scan(raw); err != nil {
		t.Fatalf("Bins Scan failed: %v", err)
	}

	back := rec.ToResult()
	if back.ID != res.ID || back.Params.NRfin != 30 || back.TotalPairs != res.TotalPairs {
		t.Errorf("Round trip mismatch: %+v", back)
	}
	if !math.IsNaN(back.Bins[0].Mean.Float()) {
		t.Errorf("Expected NaN bin mean, got %v", back.Bins[0].Mean)
	}
}
