package approval

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	domapproval "github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
)

type resolveCall struct {
	status  conversation.Status
	content string
}

type mockStore struct {
	approvals  map[string]domapproval.Approval
	resolved   []resolveCall
	resolveErr error
}

func newMockStore(list ...domapproval.Approval) *mockStore {
	m := &mockStore{approvals: map[string]domapproval.Approval{}}
	for _, a := range list {
		m.approvals[a.TenantID()+"/"+a.ID()] = a
	}
	return m
}

func (m *mockStore) GetApproval(_ context.Context, tenantID, id string) (domapproval.Approval, error) {
	a, ok := m.approvals[tenantID+"/"+id]
	if !ok {
		return domapproval.Approval{}, domain.ErrApprovalNotFound
	}
	return a, nil
}

func (m *mockStore) ListApprovals(_ context.Context, tenantID string, status domapproval.Status, _ int) ([]domapproval.Approval, error) {
	var out []domapproval.Approval
	for _, a := range m.approvals {
		if a.TenantID() == tenantID && (status == "" || a.Status() == status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) ResolveApproval(
	_ context.Context, a *domapproval.Approval, from domapproval.Status, msgStatus conversation.Status, content string,
) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	if cur := m.approvals[a.TenantID()+"/"+a.ID()]; cur.Status() != from {
		return domain.ErrInvalidTransition
	}
	m.resolved = append(m.resolved, resolveCall{status: msgStatus, content: content})
	m.approvals[a.TenantID()+"/"+a.ID()] = *a
	return nil
}

type mockIndex struct {
	upserted  []record.Record
	deleted   []string
	upsertErr error
	deleteErr error
}

func (m *mockIndex) Upsert(_ context.Context, records []record.Record) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockIndex) DeleteByDocument(_ context.Context, _, documentID string) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleted = append(m.deleted, documentID)
	return 1, nil
}

type mockEmbedder struct {
	err      error
	lastText []string
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.lastText = texts
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

// wordsBackend embeds text as a hashed bag of words, so equal texts map to equal vectors.
type wordsBackend struct{ dim int }

func (b wordsBackend) vector(text string) []float32 {
	v := make([]float32, b.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(b.dim)]++
	}
	return v
}

func (b wordsBackend) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: b.vector(text)}, nil
}

func (b wordsBackend) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = b.vector(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

var errBoom = errors.New("boom")
