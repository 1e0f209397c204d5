package chi

import (
	"context"

	domapproval "github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/document"
	approvaluc "github.com/kailas-cloud/knowledgeops/internal/usecase/approval"
	healthuc "github.com/kailas-cloud/knowledgeops/internal/usecase/health"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/ingestion"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/query"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, req query.Request) (query.Response, error)
}

// Documents manages the knowledge base.
type Documents interface {
	Ingest(ctx context.Context, req ingestion.Request) (document.Document, error)
	Get(ctx context.Context, tenantID, id string) (document.Document, error)
	List(ctx context.Context, tenantID, departmentID string) ([]document.Document, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// Approvals resolves escalated answers.
type Approvals interface {
	Get(ctx context.Context, tenantID, id string) (domapproval.Approval, error)
	List(ctx context.Context, tenantID string, status domapproval.Status, limit int) ([]domapproval.Approval, error)
	Approve(ctx context.Context, tenantID, id string, d approvaluc.Decision) (domapproval.Approval, error)
	Reject(ctx context.Context, tenantID, id string, d approvaluc.Decision) (domapproval.Approval, error)
}

// Messages reads conversation history.
type Messages interface {
	ListMessages(ctx context.Context, tenantID, conversationID string) ([]conversation.Message, error)
}

// ModelLister reports the models served by the chat backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// DepartmentLister lists the departments of a tenant.
type DepartmentLister interface {
	List(ctx context.Context, tenantID string) []department.Config
}
