package retrieve

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"seju-chat/internal/embedding"
	"seju-chat/internal/models"
)

var (
	// ErrInvalidK rejects non-positive result counts.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrEmbedding marks failures producing the query vector.
	ErrEmbedding = errors.New("embedding error")
	// ErrIndex marks failures reaching or querying the vector index.
	ErrIndex = errors.New("index error")
)

// Searcher is the slice of the vector index the engine depends on.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.RetrievedResult, error)
}

// Engine answers similarity queries: embed the query text, search the
// index, return ranked fragments.
type Engine struct {
	embedder embeddings.Embedder
	store    Searcher
	defaultK int
}

func NewEngine(embedder embeddings.Embedder, store Searcher, defaultK int) *Engine {
	if defaultK <= 0 {
		defaultK = 4
	}
	return &Engine{embedder: embedder, store: store, defaultK: defaultK}
}

// DefaultK is the result count used when a caller does not choose one.
func (e *Engine) DefaultK() int { return e.defaultK }

// Retrieve returns up to k results ordered by descending similarity.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}

	queryEmbedding, err := embedding.EmbedQuery(ctx, e.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	results, err := e.store.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	return results, nil
}
