package config

import (
	"strings"
	"testing"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.ModelPath != "models/phish_model.json" {
		t.Errorf("model path = %q", cfg.ModelPath)
	}
	if cfg.Family != FamilyAuto {
		t.Errorf("family = %q, want auto", cfg.Family)
	}
	if cfg.GuardrailFloor != 0.60 {
		t.Errorf("guardrail floor = %f, want 0.60", cfg.GuardrailFloor)
	}
	if cfg.TargetPrecision != 0.95 {
		t.Errorf("target precision = %f, want 0.95", cfg.TargetPrecision)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PHISHXAI_MODEL_PATH", "/opt/models/custom.json")
	t.Setenv("PHISHXAI_CLASSIFIER", "linear")
	t.Setenv("PHISHXAI_GUARDRAIL_FLOOR", "0.75")
	t.Setenv("PHISHXAI_MAX_TERMS", "5")
	t.Setenv("PHISHXAI_ENABLE_SURROGATE", "false")

	cfg := NewDefaultConfig()
	if cfg.ModelPath != "/opt/models/custom.json" {
		t.Errorf("model path = %q", cfg.ModelPath)
	}
	if cfg.Family != FamilyLinear {
		t.Errorf("family = %q, want linear", cfg.Family)
	}
	if cfg.GuardrailFloor != 0.75 {
		t.Errorf("guardrail floor = %f, want 0.75", cfg.GuardrailFloor)
	}
	if cfg.MaxTerms != 5 {
		t.Errorf("max terms = %d, want 5", cfg.MaxTerms)
	}
	if cfg.EnableSurrogate {
		t.Error("surrogate still enabled after PHISHXAI_ENABLE_SURROGATE=false")
	}
}

func TestMaxTermsClamped(t *testing.T) {
	t.Setenv("PHISHXAI_MAX_TERMS", "100000")
	if cfg := NewDefaultConfig(); cfg.MaxTerms != 100 {
		t.Errorf("max terms = %d, want clamp to 100", cfg.MaxTerms)
	}

	t.Setenv("PHISHXAI_MAX_TERMS", "-3")
	if cfg := NewDefaultConfig(); cfg.MaxTerms != 1 {
		t.Errorf("max terms = %d, want clamp to 1", cfg.MaxTerms)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.GuardrailFloor = 1.5
	cfg.TargetPrecision = 0
	cfg.Family = "quantum"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"guardrail floor", "target precision", "classifier family"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestNewHighPrecisionConfig(t *testing.T) {
	cfg := NewHighPrecisionConfig()
	if cfg.TargetPrecision != 0.98 {
		t.Errorf("target precision = %f, want 0.98", cfg.TargetPrecision)
	}
	if cfg.GuardrailFloor != 0.55 {
		t.Errorf("guardrail floor = %f, want 0.55", cfg.GuardrailFloor)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("high precision config invalid: %v", err)
	}
}

func TestGetEnvBoolBadValueFallsBack(t *testing.T) {
	t.Setenv("PHISHXAI_TEST_FLAG", "maybe")
	if !GetEnvBool("PHISHXAI_TEST_FLAG", true) {
		t.Error("unparseable bool did not fall back to default")
	}
}
