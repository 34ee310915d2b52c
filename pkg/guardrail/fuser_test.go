package guardrail

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/PhishXAI/phishxai/pkg/classifier"
)

func testFuser(t *testing.T) *Fuser {
	t.Helper()
	f, err := NewFuser(ThresholdSet{Suspicious: 0.55, Phish: 0.70}, "hashed_linear", DefaultFloor)
	if err != nil {
		t.Fatalf("NewFuser: %v", err)
	}
	return f
}

func prob(pPhish float64) classifier.Probability {
	return classifier.Probability{Safe: 1 - pPhish, Phish: pPhish}
}

func TestFuseLowScoreWithKeywordsIsFloored(t *testing.T) {
	f := testFuser(t)

	v := f.Fuse(prob(0.10), "Your account is suspended, please verify your password urgently")

	if v.Label != LabelSuspicious {
		t.Errorf("label = %s, want Suspicious", v.Label)
	}
	if v.Risk != DefaultFloor {
		t.Errorf("risk = %f, want floor %f", v.Risk, DefaultFloor)
	}
	if v.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9 (pSafe)", v.Confidence)
	}
}

func TestFuseCleanTextStaysSafe(t *testing.T) {
	f := testFuser(t)

	v := f.Fuse(prob(0.05), "See you at lunch tomorrow")

	if v.Label != LabelSafe {
		t.Errorf("label = %s, want Safe", v.Label)
	}
	if v.Risk != 0.05 {
		t.Errorf("risk = %f, want raw 0.05", v.Risk)
	}
	found := false
	for _, r := range v.Reasons {
		if strings.Contains(r, "no heuristic indicators") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons missing the no-indicators entry: %v", v.Reasons)
	}
}

func TestFuseFloorNeverLowersScore(t *testing.T) {
	f := testFuser(t)

	// Keyword hit with a score between floor and threshold: no change.
	v := f.Fuse(prob(0.65), "please verify this")
	if v.Risk != 0.65 {
		t.Errorf("risk = %f, want untouched 0.65", v.Risk)
	}
	if v.Label != LabelSuspicious {
		t.Errorf("label = %s, want Suspicious (keyword hit)", v.Label)
	}
}

func TestFuseThresholdBoundaryIsInclusive(t *testing.T) {
	f := testFuser(t)

	v := f.Fuse(prob(0.70), "quarterly report attached")
	if v.Label != LabelSuspicious {
		t.Errorf("label at exact threshold = %s, want Suspicious", v.Label)
	}

	v = f.Fuse(prob(0.6999), "quarterly report attached")
	if v.Label != LabelSafe {
		t.Errorf("label just below threshold = %s, want Safe", v.Label)
	}
}

func TestFuseHighScoreWithoutKeywords(t *testing.T) {
	f := testFuser(t)

	v := f.Fuse(prob(0.95), "qqq zzz xxx")
	if v.Label != LabelSuspicious {
		t.Errorf("label = %s, want Suspicious", v.Label)
	}
	if v.Risk != 0.95 {
		t.Errorf("risk = %f, want 0.95", v.Risk)
	}
	if v.Confidence != 0.95 {
		t.Errorf("confidence = %f, want 0.95", v.Confidence)
	}
}

func TestFuseSuspiciousBandReason(t *testing.T) {
	f := testFuser(t)

	v := f.Fuse(prob(0.60), "nothing remarkable about dinner plans")
	found := false
	for _, r := range v.Reasons {
		if strings.Contains(r, "suspicious band") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons missing suspicious-band note at risk 0.60: %v", v.Reasons)
	}
	if v.Label != LabelSafe {
		t.Errorf("band score without keywords labeled %s, want Safe", v.Label)
	}
}

func TestFuseReasonsNameFamilyAndThreshold(t *testing.T) {
	f := testFuser(t)

	v := f.Fuse(prob(0.3), "hello")
	if len(v.Reasons) == 0 {
		t.Fatal("no reasons produced")
	}
	if !strings.Contains(v.Reasons[0], "hashed_linear") {
		t.Errorf("first reason does not name the model family: %q", v.Reasons[0])
	}
	if !strings.Contains(v.Reasons[0], "0.70") {
		t.Errorf("first reason does not name the threshold: %q", v.Reasons[0])
	}
}

func TestFuseDeterministic(t *testing.T) {
	f := testFuser(t)

	text := "urgent payment required for your invoice"
	a := f.Fuse(prob(0.42), text)
	b := f.Fuse(prob(0.42), text)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same input gave different verdicts:\n %+v\n %+v", a, b)
	}
}

func TestNewFuserRejectsInvalidInputs(t *testing.T) {
	if _, err := NewFuser(ThresholdSet{Suspicious: 0.8, Phish: 0.7}, "x", DefaultFloor); err == nil {
		t.Error("suspicious > phish accepted")
	}
	if _, err := NewFuser(ThresholdSet{Suspicious: 0.4, Phish: 0.7}, "x", 1.5); err == nil {
		t.Error("floor > 1 accepted")
	}
}

func TestMatchKeywords(t *testing.T) {
	ResetVocabulary()

	hits := MatchKeywords("URGENT: verify your Account password now")
	want := []string{"urgent", "verify", "password", "account"}
	if !reflect.DeepEqual(hits, want) {
		t.Errorf("hits = %v, want %v (vocabulary order)", hits, want)
	}

	if got := MatchKeywords("see you at lunch tomorrow"); got != nil {
		t.Errorf("clean text matched %v, want none", got)
	}
}

func TestLoadVocabularyOverride(t *testing.T) {
	defer ResetVocabulary()

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := "terms:\n  - Bitcoin\n  - '  seed phrase  '\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadVocabulary(path); err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}

	if hits := MatchKeywords("send bitcoin to restore access"); len(hits) != 1 || hits[0] != "bitcoin" {
		t.Errorf("hits = %v, want [bitcoin]", hits)
	}
	if hits := MatchKeywords("urgent: verify your password"); hits != nil {
		t.Errorf("default terms still active after override: %v", hits)
	}
}

func TestLoadVocabularyRejectsEmpty(t *testing.T) {
	defer ResetVocabulary()

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	if err := os.WriteFile(path, []byte("terms: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadVocabulary(path); err == nil {
		t.Error("empty vocabulary accepted")
	}
}
