package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
)

// Defaults for the ranking knobs.
const (
	DefaultTopK             = 5
	DefaultMaxContextTokens = 2000
	DefaultRelevanceFloor   = 0.3
	DefaultVerifiedBoost    = 0.15
)

const (
	contextDelimiter = "\n\n---\n\n"
	tokensPerWord    = 1.3
)

// Options tunes ranking. TopK <= 0 falls back to DefaultTopK; the floor and boost are
// taken as given, so zero turns them off. DefaultOptions carries the tuned values.
type Options struct {
	TopK           int
	RelevanceFloor float64
	VerifiedBoost  float64
}

// DefaultOptions returns the tuned ranking values.
func DefaultOptions() Options {
	return Options{
		TopK:           DefaultTopK,
		RelevanceFloor: DefaultRelevanceFloor,
		VerifiedBoost:  DefaultVerifiedBoost,
	}
}

// Service embeds queries, searches the index and ranks the hits.
type Service struct {
	embedder QueryEmbedder
	index    Searcher
	topK     int
	floor    float64
	boost    float64
}

// New creates a retrieval service.
func New(embedder QueryEmbedder, index Searcher, opts Options) *Service {
	s := &Service{
		embedder: embedder,
		index:    index,
		topK:     cmp.Or(opts.TopK, DefaultTopK),
		floor:    opts.RelevanceFloor,
		boost:    opts.VerifiedBoost,
	}
	return s
}

// Retrieve returns the hits for query inside one tenant's department, verified answers
// boosted, best first, everything at or below the relevance floor dropped.
// topK <= 0 uses the configured default. A blank query returns no hits.
func (s *Service) Retrieve(ctx context.Context, tenantID, departmentID, query string, topK int) ([]result.Result, error) {
	scope, err := filter.Scope(tenantID, departmentID)
	if err != nil {
		return nil, fmt.Errorf("build scope: %w", err)
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, nil
	}

	if topK <= 0 {
		topK = s.topK
	}
	hits, err := s.index.Search(ctx, vec, scope, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return s.Rank(hits), nil
}

// Rank boosts verified answers (capped at 1), re-sorts by score and applies the relevance floor.
func (s *Service) Rank(hits []result.Result) []result.Result {
	ranked := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		if h.IsVerified() {
			h = h.WithScore(math.Min(1, h.Score()+s.boost))
		}
		ranked = append(ranked, h)
	}

	slices.SortStableFunc(ranked, func(a, b result.Result) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		// verified first on ties
		if a.IsVerified() != b.IsVerified() {
			if a.IsVerified() {
				return -1
			}
			return 1
		}
		return 0
	})

	out := ranked[:0]
	for _, h := range ranked {
		if h.Score() > s.floor {
			out = append(out, h)
		}
	}
	return out
}

// BuildContext renders ranked hits into a prompt context of at most maxTokens estimated
// tokens. Verified answers go first, each bucket keeps its rank order, and assembly stops
// at the first entry that would overflow the budget.
func BuildContext(hits []result.Result, maxTokens int) string {
	if len(hits) == 0 {
		return ""
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	ordered := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		if h.IsVerified() {
			ordered = append(ordered, h)
		}
	}
	for _, h := range hits {
		if !h.IsVerified() {
			ordered = append(ordered, h)
		}
	}

	parts := make([]string, 0, len(ordered))
	used := 0.0
	for i, h := range ordered {
		var header string
		if h.IsVerified() {
			header = fmt.Sprintf("[Source %d: VERIFIED ANSWER (relevance: %.2f)]", i+1, h.Score())
		} else {
			header = fmt.Sprintf("[Source %d: %s (relevance: %.2f)]", i+1, titleOr(h.Title()), h.Score())
		}
		text := header + "\n" + h.Content()

		cost := EstimateTokens(text)
		if used+cost > float64(maxTokens) {
			break
		}
		parts = append(parts, text)
		used += cost
	}
	return strings.Join(parts, contextDelimiter)
}

// EstimateTokens approximates the prompt tokens of s as words × 1.3.
func EstimateTokens(s string) float64 {
	return float64(len(strings.Fields(s))) * tokensPerWord
}

func titleOr(t string) string {
	if t == "" {
		return "Unknown"
	}
	return t
}
