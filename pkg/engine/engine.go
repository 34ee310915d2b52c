// Package engine composes the normalizer, classifier, guardrail and
// explanation backends into one scoring entry point.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PhishXAI/phishxai/pkg/calibrate"
	"github.com/PhishXAI/phishxai/pkg/classifier"
	"github.com/PhishXAI/phishxai/pkg/config"
	"github.com/PhishXAI/phishxai/pkg/exemplar"
	"github.com/PhishXAI/phishxai/pkg/explain"
	"github.com/PhishXAI/phishxai/pkg/guardrail"
)

// Engine owns the lazily initialized scoring dependencies. Initialization
// happens at most once effectively: concurrent first calls serialize on the
// mutex, and a failed load leaves the engine uninitialized so the next
// request retries. After a successful load all fields are read-only and safe
// for concurrent scoring.
type Engine struct {
	cfg *config.Config

	mu          sync.Mutex
	initialized bool

	clf         classifier.Classifier
	fuser       *guardrail.Fuser
	attribution explain.Explainer
	surrogate   explain.Explainer
	exemplars   *exemplar.Store
}

// New creates an engine. No model is loaded until the first Score call.
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// NewWithClassifier creates an already initialized engine around an injected
// classifier and threshold set. Explanation backends wrap the same
// classifier. Intended for tests and embedded use.
func NewWithClassifier(cfg *config.Config, clf classifier.Classifier, thresholds guardrail.ThresholdSet) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	fuser, err := guardrail.NewFuser(thresholds, clf.Family(), cfg.GuardrailFloor)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		initialized: true,
		clf:         clf,
		fuser:       fuser,
	}
	e.attribution, e.surrogate = buildExplainers(cfg, clf)
	return e, nil
}

// Score runs the full pipeline: normalize, classify, fuse, explain.
// Classifier failures are fatal to the request; explanation and exemplar
// failures only downgrade their own output.
func (e *Engine) Score(ctx context.Context, input ScoringInput) (*Analysis, error) {
	start := time.Now()

	text, err := Normalize(input.Channel, input.Text, input.URL)
	if err != nil {
		return nil, err
	}

	if err := e.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	prob, err := e.clf.PredictProbability(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	verdict := e.fuser.Fuse(prob, text)

	bundle := ExplanationBundle{
		Availability: make(map[string]bool, 2),
		Attributions: make(map[string][]explain.TokenAttribution, 2),
	}
	for _, backend := range []explain.Explainer{e.attribution, e.surrogate} {
		attrs, ok := safeExplain(ctx, backend, text, e.cfg.MaxTerms)
		bundle.Availability[backend.Name()] = ok
		if ok {
			bundle.Attributions[backend.Name()] = attrs
		}
	}

	analysis := &Analysis{
		Verdict:       verdict,
		Probabilities: prob,
		Explanations:  bundle,
		RequestID:     input.RequestID,
		LatencyMs:     float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if analysis.RequestID == "" {
		analysis.RequestID = uuid.NewString()
	}

	if e.exemplars != nil {
		if match, err := e.exemplars.Nearest(ctx, text); err == nil {
			analysis.Exemplar = match
		} else {
			log.Printf("WARNING: exemplar lookup failed: %v", err)
		}
	}

	return analysis, nil
}

// Family returns the classifier family, or empty before initialization.
func (e *Engine) Family() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ""
	}
	return e.clf.Family()
}

// Thresholds returns the active threshold set, or false before
// initialization.
func (e *Engine) Thresholds() (guardrail.ThresholdSet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return guardrail.ThresholdSet{}, false
	}
	return e.fuser.Thresholds(), true
}

// SetExplainers replaces the explanation backends. Intended for tests and
// embedded callers that bring their own interpretability method.
func (e *Engine) SetExplainers(attribution, surrogate explain.Explainer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attribution = attribution
	e.surrogate = surrogate
}

// Close releases the classifier and embedder resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	e.initialized = false
	return e.clf.Close()
}

func (e *Engine) ensureInitialized(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	clf, err := e.loadClassifier()
	if err != nil {
		return err
	}

	if e.cfg.VocabularyPath != "" {
		if err := guardrail.LoadVocabulary(e.cfg.VocabularyPath); err != nil {
			log.Printf("[WARN] Guardrail vocabulary override failed (%v), using defaults", err)
		}
	}

	thresholds := e.loadThresholds()
	fuser, err := guardrail.NewFuser(thresholds, clf.Family(), e.cfg.GuardrailFloor)
	if err != nil {
		_ = clf.Close()
		return err
	}

	e.clf = clf
	e.fuser = fuser
	e.attribution, e.surrogate = buildExplainers(e.cfg, clf)

	if e.cfg.EnableExemplars {
		e.exemplars = loadExemplarStore(ctx, e.cfg.ExemplarSeedDir)
	}

	e.initialized = true
	log.Printf("✓ Scoring engine ready (family: %s, phish threshold: %.2f)",
		clf.Family(), thresholds.Phish)
	return nil
}

func (e *Engine) loadClassifier() (classifier.Classifier, error) {
	switch e.cfg.Family {
	case config.FamilyONNX:
		cfg := classifier.DefaultONNXConfig()
		if e.cfg.ONNXModelPath != "" {
			cfg.ModelPath = e.cfg.ONNXModelPath
		}
		return classifier.NewONNXClassifier(cfg)
	case config.FamilyAuto:
		if onnx := classifier.NewAutoDetectedONNXClassifier(); onnx != nil {
			return onnx, nil
		}
		return classifier.LoadLinearModel(e.cfg.ModelPath)
	default:
		return classifier.LoadLinearModel(e.cfg.ModelPath)
	}
}

// loadThresholds falls back to conservative defaults when the metadata file
// is absent, matching the fallback threshold used by calibration.
func (e *Engine) loadThresholds() guardrail.ThresholdSet {
	t, err := calibrate.LoadThresholds(e.cfg.ThresholdsPath)
	if err != nil {
		log.Printf("[WARN] Threshold metadata unavailable (%v), using defaults", err)
		phish := calibrate.FallbackThreshold
		return guardrail.ThresholdSet{
			Suspicious: calibrate.SuspiciousThreshold(phish),
			Phish:      phish,
		}
	}
	return guardrail.ThresholdSet{Suspicious: t.Suspicious, Phish: t.Phish}
}

func buildExplainers(cfg *config.Config, clf classifier.Classifier) (explain.Explainer, explain.Explainer) {
	var attribution explain.Explainer = explain.NewUnavailable(explain.BackendAttribution)
	if cfg.EnableAttribution {
		attribution = explain.NewMaskingAttribution(clf)
	}
	var surrogate explain.Explainer = explain.NewUnavailable(explain.BackendSurrogate)
	if cfg.EnableSurrogate {
		surrogate = explain.NewLocalSurrogate(clf)
	}
	return attribution, surrogate
}

func loadExemplarStore(ctx context.Context, seedDir string) *exemplar.Store {
	embedder := exemplar.NewAutoDetectedLocalEmbedder()
	if embedder == nil {
		log.Printf("○ Exemplar index disabled (no embedding model found)")
		return nil
	}
	store, err := exemplar.NewStore(embedder.EmbeddingFunc())
	if err != nil {
		log.Printf("[WARN] Exemplar store unavailable: %v", err)
		return nil
	}
	if err := store.LoadExemplars(ctx, seedDir); err != nil {
		log.Printf("[WARN] Exemplar corpus failed to load: %v", err)
		return nil
	}
	return store
}

// safeExplain runs one backend and converts any failure, including a panic,
// into an unavailable marker for this request.
func safeExplain(ctx context.Context, backend explain.Explainer, text string, maxTerms int) (attrs []explain.TokenAttribution, ok bool) {
	if !backend.Available() {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] Explanation backend %s panicked: %v", backend.Name(), r)
			attrs, ok = nil, false
		}
	}()

	attrs, err := backend.Explain(ctx, text, maxTerms)
	if err != nil {
		log.Printf("[WARN] Explanation backend %s failed: %v", backend.Name(), err)
		return nil, false
	}
	return attrs, true
}
