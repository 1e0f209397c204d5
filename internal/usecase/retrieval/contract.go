package retrieval

import (
	"context"

	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
)

// QueryEmbedder vectorizes a search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a scoped KNN search.
type Searcher interface {
	Search(ctx context.Context, vec []float32, scope filter.Expression, topK int) ([]result.Result, error)
}
