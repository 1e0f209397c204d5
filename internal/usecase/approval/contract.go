package approval

import (
	"context"

	domapproval "github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
)

// Store persists approval tickets and their linked messages.
type Store interface {
	GetApproval(ctx context.Context, tenantID, id string) (domapproval.Approval, error)
	ListApprovals(ctx context.Context, tenantID string, status domapproval.Status, limit int) ([]domapproval.Approval, error)
	// ResolveApproval saves a only if the stored status still equals from.
	ResolveApproval(
		ctx context.Context, a *domapproval.Approval, from domapproval.Status, msgStatus conversation.Status, content string,
	) error
}

// VectorIndex receives verified answers.
type VectorIndex interface {
	Upsert(ctx context.Context, records []record.Record) error
	DeleteByDocument(ctx context.Context, tenantID, documentID string) (int, error)
}

// Embedder vectorizes the verified question.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}
