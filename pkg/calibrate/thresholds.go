// Package calibrate selects decision thresholds for the phishing classifier
// from held-out validation scores.
//
// The phish threshold is the LOWEST score that still achieves the target
// precision on the validation set, which keeps false positives down without
// giving up more recall than necessary. A suspicious band sits below it.
package calibrate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

const (
	// DefaultTargetPrecision is the precision the phish threshold must reach.
	DefaultTargetPrecision = 0.95

	// FallbackThreshold is used when no threshold reaches the target precision.
	FallbackThreshold = 0.5

	// SuspiciousFloor is the lowest allowed suspicious threshold.
	SuspiciousFloor = 0.30

	// SuspiciousBand is how far below the phish threshold the suspicious
	// threshold sits.
	SuspiciousBand = 0.15
)

// CurvePoint is one operating point on the precision/recall curve.
type CurvePoint struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Choice is a selected phish threshold with its validation metrics.
type Choice struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	// Fallback is true when no threshold reached the target precision and
	// the default was used instead.
	Fallback bool `json:"fallback"`
}

// Thresholds is the decision metadata persisted next to the model artifact.
type Thresholds struct {
	Suspicious float64 `json:"suspicious"`
	Phish      float64 `json:"phish"`
}

// thresholdsFile matches the on-disk metadata record.
type thresholdsFile struct {
	Thresholds Thresholds `json:"thresholds"`
}

// PrecisionRecallCurve computes one operating point per distinct score,
// sorted by ascending threshold. Labels are 0 (safe) or 1 (phish); scores
// are phish probabilities. A point's metrics treat score >= threshold as a
// phish prediction.
func PrecisionRecallCurve(labels []int, scores []float64) ([]CurvePoint, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("labels/scores length mismatch: %d vs %d", len(labels), len(scores))
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("empty validation set")
	}

	totalPhish := 0
	for i, y := range labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("label at index %d is %d, want 0 or 1", i, y)
		}
		if s := scores[i]; math.IsNaN(s) || s < 0 || s > 1 {
			return nil, fmt.Errorf("score at index %d is %f, want [0,1]", i, s)
		}
		totalPhish += y
	}
	if totalPhish == 0 {
		return nil, fmt.Errorf("validation set has no phish examples")
	}

	candidates := distinctSorted(scores)
	curve := make([]CurvePoint, 0, len(candidates))
	for _, t := range candidates {
		tp, fp := 0, 0
		for i, s := range scores {
			if s < t {
				continue
			}
			if labels[i] == 1 {
				tp++
			} else {
				fp++
			}
		}
		// Every candidate equals at least one score, so tp+fp > 0 here.
		curve = append(curve, CurvePoint{
			Threshold: t,
			Precision: float64(tp) / float64(tp+fp),
			Recall:    float64(tp) / float64(totalPhish),
		})
	}
	return curve, nil
}

// ChooseThreshold picks the lowest threshold whose precision reaches
// targetPrecision. When no point on the curve qualifies, it falls back to
// FallbackThreshold and reports the best precision any point achieved.
func ChooseThreshold(labels []int, scores []float64, targetPrecision float64) (Choice, error) {
	if targetPrecision <= 0 || targetPrecision > 1 {
		return Choice{}, fmt.Errorf("target precision %f out of (0,1]", targetPrecision)
	}

	curve, err := PrecisionRecallCurve(labels, scores)
	if err != nil {
		return Choice{}, err
	}

	for _, pt := range curve {
		if pt.Precision >= targetPrecision {
			return Choice{Threshold: pt.Threshold, Precision: pt.Precision, Recall: pt.Recall}, nil
		}
	}

	best := curve[0]
	for _, pt := range curve[1:] {
		if pt.Precision > best.Precision {
			best = pt
		}
	}
	return Choice{
		Threshold: FallbackThreshold,
		Precision: best.Precision,
		Recall:    best.Recall,
		Fallback:  true,
	}, nil
}

// SuspiciousThreshold derives the suspicious threshold from the phish
// threshold: SuspiciousBand below it, never under SuspiciousFloor, and never
// above the phish threshold itself.
func SuspiciousThreshold(phish float64) float64 {
	s := math.Max(SuspiciousFloor, phish-SuspiciousBand)
	if s > phish {
		s = phish
	}
	return s
}

// Derive runs threshold selection end to end and returns the persistable pair.
func Derive(labels []int, scores []float64, targetPrecision float64) (Thresholds, Choice, error) {
	choice, err := ChooseThreshold(labels, scores, targetPrecision)
	if err != nil {
		return Thresholds{}, Choice{}, err
	}
	return Thresholds{
		Suspicious: SuspiciousThreshold(choice.Threshold),
		Phish:      choice.Threshold,
	}, choice, nil
}

// Validate checks the threshold invariants.
func (t Thresholds) Validate() error {
	if t.Phish < 0 || t.Phish > 1 {
		return fmt.Errorf("phish threshold %f out of [0,1]", t.Phish)
	}
	if t.Suspicious < 0 || t.Suspicious > 1 {
		return fmt.Errorf("suspicious threshold %f out of [0,1]", t.Suspicious)
	}
	if t.Suspicious > t.Phish {
		return fmt.Errorf("suspicious threshold %f exceeds phish threshold %f", t.Suspicious, t.Phish)
	}
	return nil
}

// SaveThresholds writes the metadata record as indented JSON.
func SaveThresholds(path string, t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(thresholdsFile{Thresholds: t}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode thresholds: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write thresholds: %w", err)
	}
	return nil
}

// LoadThresholds reads and validates a metadata record.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("failed to read thresholds: %w", err)
	}
	var f thresholdsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Thresholds{}, fmt.Errorf("failed to parse thresholds: %w", err)
	}
	if err := f.Thresholds.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("invalid thresholds in %s: %w", path, err)
	}
	return f.Thresholds, nil
}

func distinctSorted(scores []float64) []float64 {
	out := make([]float64, len(scores))
	copy(out, scores)
	sort.Float64s(out)
	n := 0
	for i, s := range out {
		if i == 0 || s != out[n-1] {
			out[n] = s
			n++
		}
	}
	return out[:n]
}
