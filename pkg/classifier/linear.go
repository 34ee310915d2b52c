package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// FamilyHashedLinear is the artifact family string for the pure-Go model.
const FamilyHashedLinear = "hashed_linear"

// Calibration holds Platt sigmoid parameters fitted on a validation split:
// p = 1 / (1 + exp(A*margin + B)). A is negative for a well-oriented model.
type Calibration struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Artifact is the serialized form of the hashed-feature linear model.
// Weights are sparse, keyed by feature bucket index.
type Artifact struct {
	Version     int                `json:"version"`
	Family      string             `json:"family"`
	Buckets     uint32             `json:"buckets"`
	Weights     map[string]float64 `json:"weights"`
	Bias        float64            `json:"bias"`
	Calibration *Calibration       `json:"calibration,omitempty"`
}

// LinearModel is a calibrated logistic model over hashed unigram+bigram
// features. Immutable after load; concurrent scoring calls are safe.
type LinearModel struct {
	weights     []float64
	bias        float64
	buckets     uint32
	calibration *Calibration
}

// LoadArtifact reads and validates a model artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrModelLoad, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrModelLoad, path, err)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrModelLoad, path, err)
	}

	if art.Family != FamilyHashedLinear {
		return nil, fmt.Errorf("%w: unsupported family %q", ErrModelLoad, art.Family)
	}
	if art.Buckets == 0 {
		return nil, fmt.Errorf("%w: artifact declares zero feature buckets", ErrModelLoad)
	}

	return &art, nil
}

// SaveArtifact writes an artifact as indented JSON.
func SaveArtifact(path string, art *Artifact) error {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// NewLinearModel builds a scoring model from a validated artifact.
func NewLinearModel(art *Artifact) (*LinearModel, error) {
	if art == nil {
		return nil, fmt.Errorf("%w: nil artifact", ErrModelLoad)
	}

	weights := make([]float64, art.Buckets)
	for key, w := range art.Weights {
		idx, err := strconv.ParseUint(key, 10, 32)
		if err != nil || uint32(idx) >= art.Buckets {
			return nil, fmt.Errorf("%w: weight bucket %q out of range", ErrModelLoad, key)
		}
		weights[idx] = w
	}

	return &LinearModel{
		weights:     weights,
		bias:        art.Bias,
		buckets:     art.Buckets,
		calibration: art.Calibration,
	}, nil
}

// LoadLinearModel loads an artifact from disk and builds the model.
func LoadLinearModel(path string) (*LinearModel, error) {
	art, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return NewLinearModel(art)
}

// Family implements Classifier.
func (m *LinearModel) Family() string { return FamilyHashedLinear }

// Close implements Classifier. The linear model holds no external resources.
func (m *LinearModel) Close() error { return nil }

// PredictProbability implements Classifier.
func (m *LinearModel) PredictProbability(ctx context.Context, text string) (Probability, error) {
	_ = ctx

	margin := m.bias
	feats := m.featurize(text)
	for bucket, value := range feats {
		margin += m.weights[bucket] * value
	}

	var pPhish float64
	if m.calibration != nil {
		pPhish = sigmoid(-(m.calibration.A*margin + m.calibration.B))
	} else {
		pPhish = sigmoid(margin)
	}
	pPhish = clamp01(pPhish)

	return Probability{Safe: 1 - pPhish, Phish: pPhish}, nil
}

// featurize maps text to L2-normalized hashed term frequencies over
// unigrams and bigrams.
func (m *LinearModel) featurize(text string) map[uint32]float64 {
	tokens := Tokenize(text)
	counts := make(map[uint32]float64, len(tokens)*2)

	for i, tok := range tokens {
		counts[m.hash(tok)]++
		if i+1 < len(tokens) {
			counts[m.hash(tok+" "+tokens[i+1])]++
		}
	}

	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for b := range counts {
			counts[b] /= norm
		}
	}
	return counts
}

func (m *LinearModel) hash(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32() % m.buckets
}

// Tokenize lowercases text and splits it into letter/digit runs. Shared with
// the explanation backends so attributions line up with model features.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
