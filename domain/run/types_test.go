package run

import (
	"testing"

	"reviewguard/domain/core"
)

func TestNewRunFingerprint_Deterministic(t *testing.T) {
	params := Params{
		Algorithm:     "random_forest",
		Threshold:     0.7,
		MaxIterations: 15,
		TestFraction:  0.25,
		Seed:          42,
		PositiveLabel: "Y",
	}
	table := core.Hash("abc123")

	fp1 := NewRunFingerprint(params, table)
	fp2 := NewRunFingerprint(params, table)
	if fp1 != fp2 {
		t.Errorf("Expected identical fingerprints, got %s and %s", fp1, fp2)
	}

	params.Seed = 43
	if fp3 := NewRunFingerprint(params, table); fp3 == fp1 {
		t.Error("Expected seed change to alter fingerprint")
	}

	params.Seed = 42
	if fp4 := NewRunFingerprint(params, core.Hash("other")); fp4 == fp1 {
		t.Error("Expected table change to alter fingerprint")
	}
}

func TestRecordColumns_StoreAsJSON(t *testing.T) {
	confusion := Confusion{{5, 1}, {2, 7}}
	v, err := confusion.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != "[[5,1],[2,7]]" {
		t.Errorf("Expected JSON matrix, got %v", v)
	}

	var scanned Confusion
	if err := scanned.Scan([]byte("[[5,1],[2,7]]")); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned != confusion {
		t.Errorf("Expected %v, got %v", confusion, scanned)
	}

	var history History
	if err := history.Scan(nil); err != nil || history != nil {
		t.Errorf("Expected NULL to scan as empty history, got %v (%v)", history, err)
	}
	if v, _ := History(nil).Value(); v != "[]" {
		t.Errorf("Expected empty history to store as [], got %v", v)
	}

	var params Params
	if err := params.Scan(`{"algorithm":"naive_bayes","seed":7}`); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if params.Algorithm != "naive_bayes" || params.Seed != 7 {
		t.Errorf("Unexpected params %+v", params)
	}
	if err := params.Scan(42); err == nil {
		t.Error("Expected scanning an integer to fail")
	}
}
