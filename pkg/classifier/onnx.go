package classifier

// onnx.go - phishing classification via a fine-tuned encoder served by Hugot/ONNX
//
// Architecture:
// - Uses ONNX Runtime for fast inference when libonnxruntime is installed
// - Falls back to the pure Go backend otherwise (slower, no dependencies)
// - Gracefully degrades to the linear family if no model directory is found

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
)

// FamilyONNXEncoder is the family string reported by the ONNX classifier.
const FamilyONNXEncoder = "onnx_encoder"

// ONNXConfig configures the Hugot-backed classifier.
type ONNXConfig struct {
	// ModelPath is the local path to the ONNX model directory (must contain model.onnx).
	ModelPath string

	// OnnxLibraryPath is the directory holding libonnxruntime.so.
	// Empty means use the pure Go backend.
	OnnxLibraryPath string

	// BatchSize is the maximum batch size for inference (default: 32).
	BatchSize int

	// Timeout is the maximum time for a single inference call.
	Timeout time.Duration
}

// DefaultONNXConfig returns the default configuration.
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		ModelPath:       "./models/phish-encoder",
		OnnxLibraryPath: getDefaultOnnxPath(),
		BatchSize:       32,
		Timeout:         30 * time.Second,
	}
}

// onnxModelSearchPaths are probed in priority order by AutoDetectONNXConfig.
var onnxModelSearchPaths = []string{
	"./models/phish-encoder",
	"./models/phish-bert",
}

// AutoDetectONNXConfig returns a config pointing at a locally available model,
// or nil if none is found. PHISHXAI_ONNX_MODEL_PATH takes priority.
func AutoDetectONNXConfig() *ONNXConfig {
	if envPath := os.Getenv("PHISHXAI_ONNX_MODEL_PATH"); envPath != "" {
		if _, err := os.Stat(filepath.Join(envPath, "model.onnx")); err == nil {
			log.Printf("Using ONNX model from PHISHXAI_ONNX_MODEL_PATH: %s", envPath)
			cfg := DefaultONNXConfig()
			cfg.ModelPath = envPath
			return &cfg
		}
	}

	for _, path := range onnxModelSearchPaths {
		if _, err := os.Stat(filepath.Join(path, "model.onnx")); err == nil {
			log.Printf("Auto-detected ONNX model at %s", path)
			cfg := DefaultONNXConfig()
			cfg.ModelPath = path
			return &cfg
		}
	}

	return nil
}

// getDefaultOnnxPath returns the ONNX Runtime library directory for the
// current platform, or empty if none is installed.
func getDefaultOnnxPath() string {
	paths := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Dir(p)
		}
	}
	return ""
}

// ONNXClassifier serves phish/safe classification from an ONNX model.
type ONNXClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
	mu       sync.RWMutex
	config   ONNXConfig
	ready    bool
}

// NewONNXClassifier creates a classifier with the given configuration.
func NewONNXClassifier(cfg ONNXConfig) (*ONNXClassifier, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &ONNXClassifier{config: cfg}
	if err := c.initialize(); err != nil {
		return nil, fmt.Errorf("onnx classifier initialization failed: %w", err)
	}
	return c, nil
}

// NewAutoDetectedONNXClassifier creates a classifier from an auto-detected
// model. Returns nil when disabled or no model is available.
func NewAutoDetectedONNXClassifier() *ONNXClassifier {
	if !ONNXEnabled() {
		return nil
	}
	cfg := AutoDetectONNXConfig()
	if cfg == nil {
		return nil
	}
	c, err := NewONNXClassifier(*cfg)
	if err != nil {
		log.Printf("WARNING: ONNX classifier initialization failed (graceful degradation): %v", err)
		return nil
	}
	return c
}

func (c *ONNXClassifier) initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.createSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	c.session = session

	if _, err := os.Stat(c.config.ModelPath); err != nil {
		_ = c.session.Destroy()
		return fmt.Errorf("%w: %s", ErrModelNotFound, c.config.ModelPath)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: c.config.ModelPath,
		Name:      "phish-classifier",
	})
	if err != nil {
		_ = c.session.Destroy()
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	c.pipeline = pipeline
	c.ready = true
	log.Printf("ONNX classifier initialized (model: %s)", c.config.ModelPath)
	return nil
}

func (c *ONNXClassifier) createSession() (*hugot.Session, error) {
	// Try ONNX Runtime backend first (fastest)
	if c.config.OnnxLibraryPath != "" {
		session, err := hugot.NewORTSession(
			options.WithOnnxLibraryPath(c.config.OnnxLibraryPath),
		)
		if err == nil {
			log.Printf("ONNX classifier using ONNX Runtime backend")
			return session, nil
		}
		log.Printf("ONNX Runtime unavailable, falling back to Go backend: %v", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Go session: %w", err)
	}
	log.Printf("ONNX classifier using pure Go backend (slower, consider installing ONNX Runtime)")
	return session, nil
}

// IsReady returns true if the classifier is initialized for inference.
func (c *ONNXClassifier) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Family implements Classifier.
func (c *ONNXClassifier) Family() string { return FamilyONNXEncoder }

// isPhishLabel maps model-specific labels onto the phish class.
// Fine-tuned phishing encoders vary: "phishing" vs "benign",
// "LABEL_1" vs "LABEL_0", "spam" vs "ham".
func isPhishLabel(label string) bool {
	switch label {
	case "phishing", "phish", "spam", "malicious", "LABEL_1":
		return true
	default:
		return false
	}
}

// PredictProbability implements Classifier. The winning label's score is
// mapped onto the phish class so the two-class contract always holds.
func (c *ONNXClassifier) PredictProbability(ctx context.Context, text string) (Probability, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready || c.pipeline == nil {
		return Probability{}, ErrNotReady
	}

	result, err := c.pipeline.RunPipeline([]string{text})
	if err != nil {
		return Probability{}, fmt.Errorf("classification failed: %w", err)
	}
	if len(result.ClassificationOutputs) == 0 || len(result.ClassificationOutputs[0]) == 0 {
		return Probability{}, fmt.Errorf("classifier returned no output")
	}

	out := result.ClassificationOutputs[0][0]
	score := clamp01(float64(out.Score))

	var pPhish float64
	if isPhishLabel(out.Label) {
		pPhish = score
	} else {
		pPhish = 1 - score
	}

	return Probability{Safe: 1 - pPhish, Phish: pPhish}, nil
}

// Close releases resources held by the classifier.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready = false
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	return nil
}
