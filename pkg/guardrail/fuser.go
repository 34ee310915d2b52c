package guardrail

import (
	"fmt"
	"strings"

	"github.com/PhishXAI/phishxai/pkg/classifier"
)

// DefaultFloor is the effective phish probability a keyword hit raises a
// sub-threshold score to.
const DefaultFloor = 0.60

// Label classifies the final verdict.
type Label string

const (
	LabelSafe       Label = "Safe"
	LabelSuspicious Label = "Suspicious"
)

// ThresholdSet is the serving-time decision contract produced by calibration.
// Invariant: Suspicious <= Phish.
type ThresholdSet struct {
	Suspicious float64 `json:"suspicious"`
	Phish      float64 `json:"phish"`
}

// Verdict is the fused decision for one scoring call.
type Verdict struct {
	Label      Label    `json:"label"`
	Risk       float64  `json:"risk"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Fuser combines classifier output with the keyword guardrail. It holds only
// immutable decision parameters, so one Fuser is safe for concurrent use.
type Fuser struct {
	thresholds ThresholdSet
	family     string
	floor      float64
}

// NewFuser builds a fuser for the given thresholds and classifier family.
// A non-positive floor falls back to DefaultFloor.
func NewFuser(thresholds ThresholdSet, family string, floor float64) (*Fuser, error) {
	if thresholds.Suspicious > thresholds.Phish {
		return nil, fmt.Errorf("suspicious threshold %f exceeds phish threshold %f",
			thresholds.Suspicious, thresholds.Phish)
	}
	if floor <= 0 {
		floor = DefaultFloor
	}
	if floor > 1 {
		return nil, fmt.Errorf("guardrail floor %f out of (0,1]", floor)
	}
	return &Fuser{thresholds: thresholds, family: family, floor: floor}, nil
}

// Thresholds returns the decision thresholds in use.
func (f *Fuser) Thresholds() ThresholdSet { return f.thresholds }

// Fuse derives the verdict from the classifier probability and the raw text.
// Deterministic and side-effect free: the same inputs always yield the same
// verdict.
func (f *Fuser) Fuse(prob classifier.Probability, text string) Verdict {
	hits := MatchKeywords(text)
	keywordHit := len(hits) > 0

	effective := prob.Phish
	floored := false
	if keywordHit && prob.Phish < f.thresholds.Phish {
		if f.floor > effective {
			effective = f.floor
			floored = true
		}
	}

	var label Label
	if effective >= f.thresholds.Phish || keywordHit {
		label = LabelSuspicious
	} else {
		label = LabelSafe
	}

	confidence := prob.Safe
	if effective > confidence {
		confidence = effective
	}

	reasons := []string{
		fmt.Sprintf("model %s scored phish probability %.3f against threshold %.2f",
			f.family, prob.Phish, f.thresholds.Phish),
	}
	if keywordHit {
		reason := fmt.Sprintf("guardrail keywords matched: %s", strings.Join(hits, ", "))
		if floored {
			reason += fmt.Sprintf(" (risk floored at %.2f)", f.floor)
		}
		reasons = append(reasons, reason)
	} else {
		reasons = append(reasons, "no heuristic indicators found")
	}
	if effective >= f.thresholds.Suspicious && effective < f.thresholds.Phish {
		reasons = append(reasons, fmt.Sprintf("risk %.3f falls in the suspicious band [%.2f, %.2f)",
			effective, f.thresholds.Suspicious, f.thresholds.Phish))
	}

	return Verdict{
		Label:      label,
		Risk:       effective,
		Confidence: confidence,
		Reasons:    reasons,
	}
}
