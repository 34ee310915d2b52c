// Package classifier provides the trained phishing classifier port.
// Two families implement it: a calibrated hashed-feature linear model
// loaded from a JSON artifact, and a fine-tuned encoder served via
// Hugot/ONNX. Callers depend only on the probability contract.
package classifier

import (
	"context"
	"errors"
)

// Classifier errors
var (
	// ErrModelNotFound means the artifact path does not exist. Surfaced to
	// callers as a server-side fault, never downgraded to a default verdict.
	ErrModelNotFound = errors.New("classifier artifact not found")

	// ErrModelLoad means the artifact exists but could not be decoded.
	ErrModelLoad = errors.New("classifier artifact unreadable")

	// ErrNotReady means the classifier has not been initialized.
	ErrNotReady = errors.New("classifier not ready")
)

// Probability is the two-class output of a classifier. Safe and Phish are
// each in [0,1] and sum to 1 within floating-point tolerance.
type Probability struct {
	Safe  float64 `json:"safe"`
	Phish float64 `json:"phish"`
}

// Classifier is the port over a trained binary probabilistic classifier.
// Implementations are immutable after construction and safe for concurrent
// scoring calls.
type Classifier interface {
	// PredictProbability scores a single normalized text.
	PredictProbability(ctx context.Context, text string) (Probability, error)

	// Family identifies the classifier family (e.g. "hashed_linear", "onnx").
	// Used verbatim in verdict reasons.
	Family() string

	// Close releases any resources held by the classifier.
	Close() error
}
