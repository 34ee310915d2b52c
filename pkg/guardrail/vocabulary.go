// Package guardrail fuses the classifier probability with a deterministic
// keyword heuristic into the final verdict core.
package guardrail

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultVocabulary lists the lure terms that trigger the guardrail.
// Matching is case-insensitive substring, so short generic words stay out.
var defaultVocabulary = []string{
	"urgent",
	"verify",
	"password",
	"account",
	"invoice",
	"payment",
	"login",
	"suspended",
	"confirm your",
	"click here",
	"wire transfer",
	"gift card",
	"reset your",
	"unusual activity",
}

// VocabularyFile is the YAML override format.
//
//	terms:
//	  - urgent
//	  - verify
type VocabularyFile struct {
	Terms []string `yaml:"terms"`
}

var (
	vocabMu sync.RWMutex
	vocab   = defaultVocabulary
)

// Vocabulary returns the active guardrail terms.
func Vocabulary() []string {
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	out := make([]string, len(vocab))
	copy(out, vocab)
	return out
}

// LoadVocabulary replaces the active terms from a YAML file. Terms are
// lowercased; empty entries are dropped. An empty file is rejected so a bad
// deploy cannot silently disable the guardrail.
func LoadVocabulary(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var f VocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse vocabulary: %w", err)
	}

	terms := make([]string, 0, len(f.Terms))
	for _, t := range f.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return fmt.Errorf("vocabulary file %s contains no terms", path)
	}

	vocabMu.Lock()
	vocab = terms
	vocabMu.Unlock()
	return nil
}

// ResetVocabulary restores the compiled-in defaults. Intended for tests.
func ResetVocabulary() {
	vocabMu.Lock()
	vocab = defaultVocabulary
	vocabMu.Unlock()
}

// MatchKeywords returns the active terms found in text, in vocabulary order.
func MatchKeywords(text string) []string {
	lower := strings.ToLower(text)

	vocabMu.RLock()
	defer vocabMu.RUnlock()

	var hits []string
	for _, term := range vocab {
		if strings.Contains(lower, term) {
			hits = append(hits, term)
		}
	}
	return hits
}
