// Package exemplar indexes known phishing campaign lures and surfaces the
// closest campaign for a scored message. The index is advisory context for
// analysts; it never changes the verdict.
package exemplar

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
)

// EmbeddingFunc produces the vector for one text.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// DefaultEmbedderModelPath is where the sentence-embedding model is expected.
// all-MiniLM-L6-v2 (384 dimensions) works well for short lure texts.
const DefaultEmbedderModelPath = "./models/all-MiniLM-L6-v2"

// LocalEmbedder generates sentence embeddings from a local ONNX model.
type LocalEmbedder struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	mu       sync.RWMutex
	ready    bool
}

// NewLocalEmbedder loads the embedding model at modelPath. onnxLibraryPath
// may be empty, in which case the pure Go backend is used.
func NewLocalEmbedder(modelPath, onnxLibraryPath string) (*LocalEmbedder, error) {
	if modelPath == "" {
		modelPath = DefaultEmbedderModelPath
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("embedding model path does not exist: %s", modelPath)
	}

	e := &LocalEmbedder{}

	session, err := e.createSession(onnxLibraryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	e.session = session

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "exemplar-embedder",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	e.pipeline = pipeline
	e.ready = true
	log.Printf("Exemplar embedder initialized (model: %s)", modelPath)
	return e, nil
}

// NewAutoDetectedLocalEmbedder probes PHISHXAI_EMBEDDER_PATH and the default
// model location. Returns nil when no model is available.
func NewAutoDetectedLocalEmbedder() *LocalEmbedder {
	candidates := []string{DefaultEmbedderModelPath}
	if envPath := os.Getenv("PHISHXAI_EMBEDDER_PATH"); envPath != "" {
		candidates = append([]string{envPath}, candidates...)
	}

	for _, path := range candidates {
		if _, err := os.Stat(filepath.Join(path, "model.onnx")); err != nil {
			continue
		}
		e, err := NewLocalEmbedder(path, onnxRuntimeDir())
		if err != nil {
			log.Printf("WARNING: exemplar embedder at %s failed to initialize: %v", path, err)
			continue
		}
		return e
	}
	return nil
}

func (e *LocalEmbedder) createSession(onnxLibraryPath string) (*hugot.Session, error) {
	if onnxLibraryPath != "" {
		session, err := hugot.NewORTSession(options.WithOnnxLibraryPath(onnxLibraryPath))
		if err == nil {
			return session, nil
		}
		log.Printf("ONNX Runtime unavailable for embeddings, falling back to Go backend: %v", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Go session: %w", err)
	}
	return session, nil
}

// onnxRuntimeDir returns the directory holding libonnxruntime, or empty.
func onnxRuntimeDir() string {
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

// IsReady returns true if the embedder can serve embeddings.
func (e *LocalEmbedder) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Embed returns the embedding for one text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.ready || e.pipeline == nil {
		return nil, fmt.Errorf("exemplar embedder not ready")
	}

	result, err := e.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return result.Embeddings[0], nil
}

// EmbeddingFunc adapts the embedder for the vector store.
func (e *LocalEmbedder) EmbeddingFunc() EmbeddingFunc {
	return e.Embed
}

// Close releases the underlying session.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ready = false
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
