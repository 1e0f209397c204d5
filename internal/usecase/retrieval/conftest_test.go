package retrieval

import (
	"context"

	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
)

type mockEmbedder struct {
	vec      []float32
	err      error
	lastText string
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	m.lastText = text
	return m.vec, m.err
}

type mockSearcher struct {
	searchFn  func(ctx context.Context, vec []float32, scope filter.Expression, topK int) ([]result.Result, error)
	lastScope filter.Expression
	lastTopK  int
	calls     int
}

func (m *mockSearcher) Search(ctx context.Context, vec []float32, scope filter.Expression, topK int) ([]result.Result, error) {
	m.calls++
	m.lastScope = scope
	m.lastTopK = topK
	if m.searchFn != nil {
		return m.searchFn(ctx, vec, scope, topK)
	}
	return nil, nil
}

func hit(id string, score float64, src record.SourceType, title, content string) result.Result {
	return result.New(id, score, record.Payload{
		TenantID: "acme", DepartmentID: "it-ops", DocumentID: "doc-" + id,
		Title: title, Content: content, SourceType: src,
	})
}

func docHit(id string, score float64) result.Result {
	return hit(id, score, record.SourceDocument, "Doc "+id, "content of "+id)
}

func verifiedHit(id string, score float64) result.Result {
	return hit(id, score, record.SourceVerifiedAnswer, "Verified answer", "Q: q\nA: a "+id)
}
