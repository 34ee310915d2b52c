package explain

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/PhishXAI/phishxai/pkg/classifier"
)

const (
	// maxSurrogateTokens caps the surrogate's feature space.
	maxSurrogateTokens = 64

	// surrogateSamples is how many perturbed neighbors are drawn around the
	// input instance.
	surrogateSamples = 256

	// surrogateRidge is the L2 penalty keeping the local model stable when
	// perturbed samples are collinear.
	surrogateRidge = 1e-3

	// surrogateKernelWidth controls how fast neighbor influence decays with
	// masking distance.
	surrogateKernelWidth = 0.5
)

// LocalSurrogate fits an interpretable linear model around a single input by
// sampling token-masked neighbors and regressing the classifier's phish
// probability on token presence. Weights follow the surrogate's own sign
// convention and are not scaled to match the attribution backend.
type LocalSurrogate struct {
	predict func(ctx context.Context, text string) (float64, error)
}

// NewLocalSurrogate wraps the classifier's probability function.
func NewLocalSurrogate(c classifier.Classifier) *LocalSurrogate {
	return &LocalSurrogate{predict: oracle(c)}
}

func (s *LocalSurrogate) Name() string    { return BackendSurrogate }
func (s *LocalSurrogate) Available() bool { return true }

// Explain returns up to maxTerms token features ranked by descending
// absolute surrogate weight. Sampling is seeded from the input text, so the
// same text always yields the same explanation.
func (s *LocalSurrogate) Explain(ctx context.Context, text string, maxTerms int) ([]TokenAttribution, error) {
	if maxTerms <= 0 {
		return nil, fmt.Errorf("maxTerms must be positive, got %d", maxTerms)
	}

	tokens := uniqueTokens(classifier.Tokenize(text))
	if len(tokens) == 0 {
		return []TokenAttribution{}, nil
	}
	if len(tokens) > maxSurrogateTokens {
		tokens = tokens[:maxSurrogateTokens]
	}
	d := len(tokens)

	rng := rand.New(rand.NewSource(textSeed(text)))

	// Row 0 is the unperturbed instance; the rest are random maskings.
	rows := make([][]float64, 0, surrogateSamples)
	targets := make([]float64, 0, surrogateSamples)
	proximity := make([]float64, 0, surrogateSamples)

	for n := 0; n < surrogateSamples; n++ {
		mask := make([]bool, d)
		kept := 0
		if n == 0 {
			for i := range mask {
				mask[i] = true
			}
			kept = d
		} else {
			for i := range mask {
				if rng.Intn(2) == 0 {
					mask[i] = true
					kept++
				}
			}
			if kept == 0 {
				mask[rng.Intn(d)] = true
				kept = 1
			}
		}

		sample := make([]string, 0, kept)
		row := make([]float64, d+1)
		row[0] = 1 // intercept
		for i, keep := range mask {
			if keep {
				sample = append(sample, tokens[i])
				row[i+1] = 1
			}
		}

		y, err := s.predict(ctx, strings.Join(sample, " "))
		if err != nil {
			return nil, fmt.Errorf("neighbor prediction failed: %w", err)
		}

		dist := 1 - float64(kept)/float64(d)
		rows = append(rows, row)
		targets = append(targets, y)
		proximity = append(proximity, math.Exp(-(dist*dist)/(surrogateKernelWidth*surrogateKernelWidth)))
	}

	beta, err := weightedRidge(rows, targets, proximity, surrogateRidge)
	if err != nil {
		return nil, fmt.Errorf("surrogate fit failed: %w", err)
	}

	attrs := make([]TokenAttribution, d)
	for i, tok := range tokens {
		attrs[i] = TokenAttribution{Token: tok, Weight: beta[i+1]}
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return math.Abs(attrs[i].Weight) > math.Abs(attrs[j].Weight)
	})
	if len(attrs) > maxTerms {
		attrs = attrs[:maxTerms]
	}
	return attrs, nil
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func textSeed(text string) int64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return int64(h.Sum64())
}

// weightedRidge solves (X'WX + lambda*I) beta = X'Wy by Gaussian elimination
// with partial pivoting. The intercept column is not penalized.
func weightedRidge(rows [][]float64, y, w []float64, lambda float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no samples")
	}
	p := len(rows[0])

	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p+1)
	}
	for n, row := range rows {
		for i := 0; i < p; i++ {
			wi := w[n] * row[i]
			if wi == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				a[i][j] += wi * row[j]
			}
			a[i][p] += wi * y[n]
		}
	}
	for i := 1; i < p; i++ {
		a[i][i] += lambda
	}

	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular design matrix at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := 0; r < p; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for j := col; j <= p; j++ {
				a[r][j] -= f * a[col][j]
			}
		}
	}

	beta := make([]float64, p)
	for i := 0; i < p; i++ {
		beta[i] = a[i][p] / a[i][i]
	}
	return beta, nil
}
