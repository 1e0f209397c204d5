package query

import (
	"context"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/confidence"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/generation"
)

// Departments resolves per-department routing configuration.
type Departments interface {
	Get(ctx context.Context, tenantID, deptID string) (department.Config, error)
}

// Conversations persists question/answer turns.
type Conversations interface {
	GetConversation(ctx context.Context, tenantID, id string) (conversation.Conversation, error)
	SaveExchange(ctx context.Context, ex conversation.Exchange) error
}

// Retriever finds ranked passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, departmentID, query string, topK int) ([]result.Result, error)
}

// Generator produces an answer. It never fails; failures come back as degraded answers.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) generation.Answer
	GenerateStream(ctx context.Context, req generation.Request, onToken func(string) error) generation.Answer
}

// Vision describes an attached image.
type Vision interface {
	Describe(ctx context.Context, img domain.Image, question string) (string, error)
}

// Scorer rates an answer against its retrieval evidence.
type Scorer interface {
	Score(answer string, results []result.Result, threshold float64) confidence.Assessment
}
