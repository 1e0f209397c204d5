package query

import (
	"context"
	"sync"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/generation"
)

type mockDepartments struct {
	cfg department.Config
	err error
}

func (m *mockDepartments) Get(_ context.Context, tenantID, deptID string) (department.Config, error) {
	if m.err != nil {
		return department.Config{}, m.err
	}
	c := m.cfg
	c.TenantID, c.ID = tenantID, deptID
	return c, nil
}

type mockConversations struct {
	mu      sync.Mutex
	convs   map[string]conversation.Conversation
	saved   []conversation.Exchange
	saveErr error
}

func newMockConversations() *mockConversations {
	return &mockConversations{convs: map[string]conversation.Conversation{}}
}

func (m *mockConversations) GetConversation(_ context.Context, tenantID, id string) (conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.TenantID != tenantID {
		return conversation.Conversation{}, domain.ErrConversationNotFound
	}
	return c, nil
}

func (m *mockConversations) SaveExchange(_ context.Context, ex conversation.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, ex)
	c := *ex.Conversation
	c.MessageCount += 2
	m.convs[c.ID] = c
	return nil
}

type mockRetriever struct {
	retrieveFn func(ctx context.Context, tenantID, departmentID, query string, topK int) ([]result.Result, error)
	lastTopK   int
}

func (m *mockRetriever) Retrieve(ctx context.Context, tenantID, departmentID, query string, topK int) ([]result.Result, error) {
	m.lastTopK = topK
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, tenantID, departmentID, query, topK)
	}
	return nil, nil
}

type mockGenerator struct {
	answer   generation.Answer
	lastReq  generation.Request
	streamed bool
}

func (m *mockGenerator) Generate(_ context.Context, req generation.Request) generation.Answer {
	m.lastReq = req
	return m.answer
}

func (m *mockGenerator) GenerateStream(_ context.Context, req generation.Request, onToken func(string) error) generation.Answer {
	m.lastReq = req
	m.streamed = true
	_ = onToken(m.answer.Text)
	return m.answer
}

type mockVision struct {
	desc string
	err  error
}

func (m *mockVision) Describe(_ context.Context, _ domain.Image, _ string) (string, error) {
	return m.desc, m.err
}

func docResult(id string, score float64, content string) result.Result {
	return result.New(id, score, record.Payload{
		TenantID: "acme", DepartmentID: "it-ops", DocumentID: "doc-" + id,
		Title: "Runbook " + id, Content: content, SourceType: record.SourceDocument,
	})
}
