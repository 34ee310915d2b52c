// Package explain provides optional interpretability backends for the
// phishing classifier. Each backend is independently available and each
// call is best effort; a failing backend never blocks the verdict.
package explain

import (
	"context"
	"errors"

	"github.com/PhishXAI/phishxai/pkg/classifier"
)

// Backend names reported in the explanation availability map.
const (
	BackendAttribution = "attribution"
	BackendSurrogate   = "surrogate"
)

// ErrUnavailable reports that a backend was disabled or never initialized.
var ErrUnavailable = errors.New("explanation backend unavailable")

// TokenAttribution is one token's weighted contribution. Sign and magnitude
// are backend specific; the two backends' lists are independently scaled.
type TokenAttribution struct {
	Token  string  `json:"token"`
	Weight float64 `json:"weight"`
}

// Explainer is the contract both backends implement. Explain returns up to
// maxTerms attributions ordered by descending relevance.
type Explainer interface {
	Name() string
	Available() bool
	Explain(ctx context.Context, text string, maxTerms int) ([]TokenAttribution, error)
}

// Unavailable is the stub used when a backend is disabled or failed to
// initialize. It keeps the backend's name in the availability map without
// ever producing attributions.
type Unavailable struct {
	name string
}

// NewUnavailable returns a stub for the named backend.
func NewUnavailable(name string) *Unavailable {
	return &Unavailable{name: name}
}

func (u *Unavailable) Name() string    { return u.name }
func (u *Unavailable) Available() bool { return false }

func (u *Unavailable) Explain(ctx context.Context, text string, maxTerms int) ([]TokenAttribution, error) {
	return nil, ErrUnavailable
}

// oracle adapts a classifier into the probability function both backends
// perturb. It returns the phish-class probability only.
func oracle(c classifier.Classifier) func(ctx context.Context, text string) (float64, error) {
	return func(ctx context.Context, text string) (float64, error) {
		p, err := c.PredictProbability(ctx, text)
		if err != nil {
			return 0, err
		}
		return p.Phish, nil
	}
}
