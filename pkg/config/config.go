package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ClassifierFamily selects the classifier backend loaded at startup
type ClassifierFamily string

const (
	// FamilyLinear is the calibrated hashed-feature linear model (default, pure Go)
	FamilyLinear ClassifierFamily = "linear"
	// FamilyONNX is a fine-tuned encoder served via Hugot/ONNX
	FamilyONNX ClassifierFamily = "onnx"
	// FamilyAuto picks ONNX when a model directory is present, linear otherwise
	FamilyAuto ClassifierFamily = "auto"
)

// Config holds global settings for the PhishXAI engine and server
// All settings can be configured via environment variables or programmatically
type Config struct {
	// === Model Artifacts ===
	ModelPath      string // Path to the serialized classifier artifact (default: "models/phish_model.json")
	ThresholdsPath string // Path to the threshold metadata record (default: "models/phish_meta.json")
	ONNXModelPath  string // Path to an ONNX model directory for the onnx family (optional)

	// === Classifier Selection ===
	Family ClassifierFamily // "linear", "onnx", or "auto"

	// === Guardrail ===
	GuardrailFloor  float64 // Floor applied to the phish probability on a keyword hit (default: 0.60)
	VocabularyPath  string  // Optional YAML file overriding the guardrail vocabulary
	ExemplarSeedDir string  // Optional directory of YAML campaign seed files

	// === Explanations ===
	MaxTerms          int  // Maximum token attributions returned per backend (default: 10)
	EnableAttribution bool // Masking-attribution backend (default: true)
	EnableSurrogate   bool // Local-surrogate backend (default: true)
	EnableExemplars   bool // Known-campaign similarity index (default: true)

	// === Calibration Defaults ===
	TargetPrecision float64 // Minimum precision the phish threshold must reach (default: 0.95)

	// === Request Limits (transport boundary) ===
	MaxTextLen     int // Maximum accepted text length (default: 20000)
	MaxURLLen      int // Maximum accepted URL length (default: 2048)
	MaxConcurrency int // Concurrent scoring requests served before 503 (default: 64)
}

// NewDefaultConfig creates a Config with sensible defaults
// All settings can be overridden via environment variables
func NewDefaultConfig() *Config {
	return &Config{
		ModelPath:      GetEnv("PHISHXAI_MODEL_PATH", "models/phish_model.json"),
		ThresholdsPath: GetEnv("PHISHXAI_META_PATH", "models/phish_meta.json"),
		ONNXModelPath:  GetEnv("PHISHXAI_ONNX_MODEL_PATH", ""),

		Family: ClassifierFamily(GetEnv("PHISHXAI_CLASSIFIER", string(FamilyAuto))),

		GuardrailFloor:  GetEnvFloat("PHISHXAI_GUARDRAIL_FLOOR", 0.60),
		VocabularyPath:  GetEnv("PHISHXAI_VOCAB_PATH", ""),
		ExemplarSeedDir: GetEnv("PHISHXAI_SEED_DIR", ""),

		MaxTerms:          clampInt(GetEnvInt("PHISHXAI_MAX_TERMS", 10), 1, 100),
		EnableAttribution: GetEnvBool("PHISHXAI_ENABLE_ATTRIBUTION", true),
		EnableSurrogate:   GetEnvBool("PHISHXAI_ENABLE_SURROGATE", true),
		EnableExemplars:   GetEnvBool("PHISHXAI_ENABLE_EXEMPLARS", true),

		TargetPrecision: GetEnvFloat("PHISHXAI_TARGET_PRECISION", 0.95),

		MaxTextLen:     GetEnvInt("PHISHXAI_MAX_TEXT_LEN", 20000),
		MaxURLLen:      GetEnvInt("PHISHXAI_MAX_URL_LEN", 2048),
		MaxConcurrency: clampInt(GetEnvInt("PHISHXAI_MAX_CONCURRENCY", 64), 1, 4096),
	}
}

// NewHighPrecisionConfig creates a Config that minimizes false "Suspicious"
// verdicts at the cost of recall (the default posture for user-facing triage)
func NewHighPrecisionConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.TargetPrecision = 0.98
	cfg.GuardrailFloor = 0.55
	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var problems []string

	if c.GuardrailFloor < 0 || c.GuardrailFloor > 1 {
		problems = append(problems, fmt.Sprintf("guardrail floor %.2f outside [0,1]", c.GuardrailFloor))
	}
	if c.TargetPrecision <= 0 || c.TargetPrecision > 1 {
		problems = append(problems, fmt.Sprintf("target precision %.2f outside (0,1]", c.TargetPrecision))
	}
	switch c.Family {
	case FamilyLinear, FamilyONNX, FamilyAuto:
	default:
		problems = append(problems, fmt.Sprintf("unknown classifier family %q", c.Family))
	}
	if c.MaxTextLen <= 0 || c.MaxURLLen <= 0 {
		problems = append(problems, "request length limits must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// clampInt ensures a value is within bounds
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Helper functions for environment variable parsing
// These are exported for use by other packages (e.g., pkg/classifier)

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
