package explain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PhishXAI/phishxai/pkg/classifier"
)

// maxOcclusionTokens caps how many tokens are individually masked so one
// pathological input cannot trigger thousands of classifier calls.
const maxOcclusionTokens = 256

// MaskingAttribution explains a prediction by occlusion: each token is
// removed in turn and the drop in the phish probability is that token's
// contribution. Positive weight means the token pushed the score toward
// phish.
type MaskingAttribution struct {
	predict func(ctx context.Context, text string) (float64, error)
}

// NewMaskingAttribution wraps the classifier's probability function.
func NewMaskingAttribution(c classifier.Classifier) *MaskingAttribution {
	return &MaskingAttribution{predict: oracle(c)}
}

func (a *MaskingAttribution) Name() string    { return BackendAttribution }
func (a *MaskingAttribution) Available() bool { return true }

// Explain returns the top maxTerms tokens by descending phish contribution.
// Ties keep original token order.
func (a *MaskingAttribution) Explain(ctx context.Context, text string, maxTerms int) ([]TokenAttribution, error) {
	if maxTerms <= 0 {
		return nil, fmt.Errorf("maxTerms must be positive, got %d", maxTerms)
	}

	tokens := classifier.Tokenize(text)
	if len(tokens) == 0 {
		return []TokenAttribution{}, nil
	}
	if len(tokens) > maxOcclusionTokens {
		tokens = tokens[:maxOcclusionTokens]
	}

	base, err := a.predict(ctx, strings.Join(tokens, " "))
	if err != nil {
		return nil, fmt.Errorf("baseline prediction failed: %w", err)
	}

	attrs := make([]TokenAttribution, len(tokens))
	for i, tok := range tokens {
		masked := strings.Join(withoutToken(tokens, i), " ")
		p, err := a.predict(ctx, masked)
		if err != nil {
			return nil, fmt.Errorf("masked prediction for %q failed: %w", tok, err)
		}
		attrs[i] = TokenAttribution{Token: tok, Weight: base - p}
	}

	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Weight > attrs[j].Weight
	})
	if len(attrs) > maxTerms {
		attrs = attrs[:maxTerms]
	}
	return attrs, nil
}

func withoutToken(tokens []string, idx int) []string {
	out := make([]string, 0, len(tokens)-1)
	out = append(out, tokens[:idx]...)
	return append(out, tokens[idx+1:]...)
}
