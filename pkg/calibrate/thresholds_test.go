package calibrate

import (
	"math"
	"path/filepath"
	"testing"
)

func TestPrecisionRecallCurve(t *testing.T) {
	labels := []int{0, 0, 1, 1}
	scores := []float64{0.1, 0.4, 0.35, 0.8}

	curve, err := PrecisionRecallCurve(labels, scores)
	if err != nil {
		t.Fatalf("PrecisionRecallCurve: %v", err)
	}
	if len(curve) != 4 {
		t.Fatalf("got %d points, want 4", len(curve))
	}

	// At t=0.8 only the score-0.8 phish example is predicted positive.
	last := curve[len(curve)-1]
	if last.Threshold != 0.8 {
		t.Errorf("last threshold = %f, want 0.8", last.Threshold)
	}
	if last.Precision != 1.0 {
		t.Errorf("precision at 0.8 = %f, want 1.0", last.Precision)
	}
	if last.Recall != 0.5 {
		t.Errorf("recall at 0.8 = %f, want 0.5", last.Recall)
	}

	// At t=0.35 predictions are {0.4, 0.35, 0.8}: two phish, one safe.
	var at035 *CurvePoint
	for i := range curve {
		if curve[i].Threshold == 0.35 {
			at035 = &curve[i]
		}
	}
	if at035 == nil {
		t.Fatal("no curve point at threshold 0.35")
	}
	if math.Abs(at035.Precision-2.0/3.0) > 1e-9 {
		t.Errorf("precision at 0.35 = %f, want 2/3", at035.Precision)
	}
	if at035.Recall != 1.0 {
		t.Errorf("recall at 0.35 = %f, want 1.0", at035.Recall)
	}
}

func TestPrecisionRecallCurveRejectsBadInput(t *testing.T) {
	if _, err := PrecisionRecallCurve([]int{0, 1}, []float64{0.5}); err == nil {
		t.Error("length mismatch accepted")
	}
	if _, err := PrecisionRecallCurve(nil, nil); err == nil {
		t.Error("empty set accepted")
	}
	if _, err := PrecisionRecallCurve([]int{0, 2}, []float64{0.1, 0.9}); err == nil {
		t.Error("non-binary label accepted")
	}
	if _, err := PrecisionRecallCurve([]int{0, 1}, []float64{0.1, 1.5}); err == nil {
		t.Error("out-of-range score accepted")
	}
	if _, err := PrecisionRecallCurve([]int{0, 0}, []float64{0.1, 0.2}); err == nil {
		t.Error("all-safe validation set accepted")
	}
}

func TestChooseThresholdPicksLowestQualifying(t *testing.T) {
	// Precision at t=0.3 is 3/4; at t=0.6 and above it is 1.0.
	labels := []int{0, 0, 1, 1, 1, 0}
	scores := []float64{0.1, 0.3, 0.6, 0.7, 0.9, 0.2}

	c, err := ChooseThreshold(labels, scores, 0.95)
	if err != nil {
		t.Fatalf("ChooseThreshold: %v", err)
	}
	if c.Fallback {
		t.Error("unexpected fallback")
	}
	if c.Threshold != 0.6 {
		t.Errorf("threshold = %f, want 0.6 (lowest reaching precision 0.95)", c.Threshold)
	}
	if c.Precision != 1.0 {
		t.Errorf("precision = %f, want 1.0", c.Precision)
	}
	if c.Recall != 1.0 {
		t.Errorf("recall = %f, want 1.0", c.Recall)
	}
}

func TestChooseThresholdFallback(t *testing.T) {
	// Phish and safe scores are interleaved so no threshold is clean enough.
	labels := []int{1, 0, 1, 0}
	scores := []float64{0.9, 0.9, 0.4, 0.4}

	c, err := ChooseThreshold(labels, scores, 0.95)
	if err != nil {
		t.Fatalf("ChooseThreshold: %v", err)
	}
	if !c.Fallback {
		t.Fatal("expected fallback")
	}
	if c.Threshold != FallbackThreshold {
		t.Errorf("threshold = %f, want %f", c.Threshold, FallbackThreshold)
	}
	if c.Precision != 0.5 {
		t.Errorf("best achievable precision = %f, want 0.5", c.Precision)
	}
}

func TestSuspiciousThreshold(t *testing.T) {
	tests := []struct {
		phish float64
		want  float64
	}{
		{0.9, 0.75},
		{0.5, 0.35},
		{0.4, 0.30},
		{0.32, 0.30},
		// Never above the phish threshold itself.
		{0.2, 0.2},
		{0.0, 0.0},
	}
	for _, tt := range tests {
		if got := SuspiciousThreshold(tt.phish); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SuspiciousThreshold(%f) = %f, want %f", tt.phish, got, tt.want)
		}
	}
}

func TestDerive(t *testing.T) {
	labels := []int{0, 0, 1, 1, 1}
	scores := []float64{0.1, 0.2, 0.7, 0.8, 0.9}

	th, choice, err := Derive(labels, scores, 0.95)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if th.Phish != choice.Threshold {
		t.Errorf("phish threshold %f != chosen %f", th.Phish, choice.Threshold)
	}
	if th.Suspicious > th.Phish {
		t.Errorf("suspicious %f exceeds phish %f", th.Suspicious, th.Phish)
	}
	if err := th.Validate(); err != nil {
		t.Errorf("derived thresholds invalid: %v", err)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := (Thresholds{Suspicious: 0.5, Phish: 0.7}).Validate(); err != nil {
		t.Errorf("valid thresholds rejected: %v", err)
	}
	if err := (Thresholds{Suspicious: 0.8, Phish: 0.7}).Validate(); err == nil {
		t.Error("suspicious > phish accepted")
	}
	if err := (Thresholds{Suspicious: 0.5, Phish: 1.2}).Validate(); err == nil {
		t.Error("phish > 1 accepted")
	}
}

func TestThresholdsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phish_meta.json")
	want := Thresholds{Suspicious: 0.45, Phish: 0.6}

	if err := SaveThresholds(path, want); err != nil {
		t.Fatalf("SaveThresholds: %v", err)
	}
	got, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestLoadThresholdsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phish_meta.json")
	if err := SaveThresholds(path, Thresholds{Suspicious: 0.9, Phish: 0.5}); err == nil {
		t.Error("SaveThresholds accepted invalid pair")
	}
	if _, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadThresholds succeeded on missing file")
	}
}
