package exemplar

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// DefaultSimilarityThreshold is the cosine similarity above which a query is
// considered a campaign match.
const DefaultSimilarityThreshold = 0.65

// Match is one exemplar scored against the query.
type Match struct {
	Text       string  `json:"text"`
	Campaign   string  `json:"campaign"`
	Channel    string  `json:"channel"`
	Similarity float32 `json:"similarity"`
}

// Result is the campaign lookup for one scored message.
type Result struct {
	Campaign    string  `json:"campaign"`
	MatchedText string  `json:"matched_text,omitempty"`
	Similarity  float32 `json:"similarity"`
	IsMatch     bool    `json:"is_match"`
	TopMatches  []Match `json:"top_matches,omitempty"`
}

// Store holds the campaign exemplar index in an in-process vector database.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	threshold  float32
	mu         sync.RWMutex
	ready      bool
}

// NewStore creates an empty index backed by the given embedding function.
func NewStore(embed EmbeddingFunc) (*Store, error) {
	if embed == nil {
		return nil, fmt.Errorf("embedding function is nil")
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("campaign_exemplars", nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &Store{
		db:         db,
		collection: collection,
		threshold:  DefaultSimilarityThreshold,
	}, nil
}

// LoadExemplars indexes the campaign corpus. When seedDir is non-empty its
// YAML files are used; otherwise, or when loading them fails, the compiled-in
// corpus is used.
func (s *Store) LoadExemplars(ctx context.Context, seedDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exemplars []CampaignExemplar
	if seedDir != "" {
		var err error
		exemplars, err = LoadSeedDir(seedDir)
		if err != nil {
			log.Printf("WARNING: failed to load exemplar seeds from %s: %v, using built-in corpus", seedDir, err)
			exemplars = DefaultExemplars()
		} else {
			log.Printf("Loaded %d campaign exemplars from %s", len(exemplars), seedDir)
		}
	} else {
		exemplars = DefaultExemplars()
	}

	docs := make([]chromem.Document, len(exemplars))
	for i, ex := range exemplars {
		docs[i] = chromem.Document{
			ID:      uuid.NewString(),
			Content: ex.Text,
			Metadata: map[string]string{
				"campaign": ex.Campaign,
				"channel":  ex.Channel,
				"severity": fmt.Sprintf("%.2f", ex.Severity),
			},
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to index exemplars: %w", err)
	}

	s.ready = true
	return nil
}

// IsReady reports whether the index has been loaded.
func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// SetThreshold updates the similarity threshold.
func (s *Store) SetThreshold(t float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = t
}

// Nearest returns the closest campaign for the text. A confident benign
// match reports no campaign.
func (s *Store) Nearest(ctx context.Context, text string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, fmt.Errorf("exemplar store not initialized, call LoadExemplars first")
	}

	nResults := 3
	if count := s.collection.Count(); count < nResults {
		nResults = count
	}
	if nResults == 0 {
		return &Result{Campaign: "benign"}, nil
	}

	results, err := s.collection.Query(ctx, strings.ToLower(text), nResults, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("exemplar query failed: %w", err)
	}
	if len(results) == 0 {
		return &Result{Campaign: "benign"}, nil
	}

	top := make([]Match, len(results))
	for i, r := range results {
		top[i] = Match{
			Text:       r.Content,
			Campaign:   r.Metadata["campaign"],
			Channel:    r.Metadata["channel"],
			Similarity: r.Similarity,
		}
	}

	best := results[0]
	campaign := best.Metadata["campaign"]
	if campaign == "benign" && best.Similarity > s.threshold {
		return &Result{Campaign: "benign", TopMatches: top}, nil
	}

	return &Result{
		Campaign:    campaign,
		MatchedText: best.Content,
		Similarity:  best.Similarity,
		IsMatch:     best.Similarity >= s.threshold && campaign != "benign",
		TopMatches:  top,
	}, nil
}
