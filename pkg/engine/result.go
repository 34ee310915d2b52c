package engine

import (
	"github.com/PhishXAI/phishxai/pkg/classifier"
	"github.com/PhishXAI/phishxai/pkg/exemplar"
	"github.com/PhishXAI/phishxai/pkg/explain"
	"github.com/PhishXAI/phishxai/pkg/guardrail"
)

// ScoringInput is one message to score. Text and URL are raw; the engine
// normalizes them per channel.
type ScoringInput struct {
	Channel   Channel `json:"channel"`
	Text      string  `json:"text"`
	URL       string  `json:"url,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// ExplanationBundle carries the per-backend token lists. A backend whose
// list is absent from Attributions was unavailable or failed for this
// request, which is distinct from producing an empty list.
type ExplanationBundle struct {
	Availability map[string]bool                       `json:"backend_availability"`
	Attributions map[string][]explain.TokenAttribution `json:"attributions,omitempty"`
}

// Analysis is the full scoring result for one input.
type Analysis struct {
	Verdict       guardrail.Verdict      `json:"verdict"`
	Probabilities classifier.Probability `json:"probabilities"`
	Explanations  ExplanationBundle      `json:"explanations"`
	Exemplar      *exemplar.Result       `json:"exemplar,omitempty"`
	RequestID     string                 `json:"request_id"`
	LatencyMs     float64                `json:"latency_ms"`
}
