package approval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	domapproval "github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/logger"
	"github.com/kailas-cloud/knowledgeops/internal/metrics"
)

// Decision is a reviewer's verdict.
type Decision struct {
	Answer   string // approved or corrected answer; empty keeps the original
	Reason   string // rejection only
	Notes    string
	Reviewer string
}

// Service resolves escalated answers and feeds approved ones back into the index.
type Service struct {
	store    Store
	index    VectorIndex
	embedder Embedder
	now      func() time.Time
}

// New creates an approval service.
func New(store Store, index VectorIndex, embedder Embedder) *Service {
	return &Service{store: store, index: index, embedder: embedder, now: time.Now}
}

// Get returns one approval ticket.
func (s *Service) Get(ctx context.Context, tenantID, id string) (domapproval.Approval, error) {
	a, err := s.store.GetApproval(ctx, tenantID, id)
	if err != nil {
		return domapproval.Approval{}, fmt.Errorf("get approval: %w", err)
	}
	return a, nil
}

// List returns a tenant's approvals, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID string, status domapproval.Status, limit int) ([]domapproval.Approval, error) {
	list, err := s.store.ListApprovals(ctx, tenantID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return list, nil
}

// Approve accepts a pending answer and indexes the verified Q&A pair.
// Indexing failures are logged, never returned.
func (s *Service) Approve(ctx context.Context, tenantID, id string, d Decision) (domapproval.Approval, error) {
	a, err := s.store.GetApproval(ctx, tenantID, id)
	if err != nil {
		return domapproval.Approval{}, fmt.Errorf("get approval: %w", err)
	}
	from := a.Status()
	if err := a.Approve(d.Answer, d.Notes, d.Reviewer, s.now()); err != nil {
		return domapproval.Approval{}, err
	}
	// message content changes only when the reviewer supplied a new answer
	if err := s.store.ResolveApproval(ctx, &a, from, conversation.StatusApproved, d.Answer); err != nil {
		return domapproval.Approval{}, fmt.Errorf("resolve approval: %w", err)
	}
	metrics.ApprovalsResolvedTotal.WithLabelValues("approve").Inc()

	if err := s.indexVerified(ctx, &a); err != nil {
		metrics.FeedbackIndexFailuresTotal.WithLabelValues("upsert").Inc()
		logger.FromContext(ctx).Error("Failed to index verified answer",
			zap.String("approval_id", a.ID()), zap.Error(err))
	}
	return a, nil
}

// Reject refuses an answer. Rejecting an approved ticket retracts its verified answer
// from the index; that removal is best-effort like indexing.
func (s *Service) Reject(ctx context.Context, tenantID, id string, d Decision) (domapproval.Approval, error) {
	a, err := s.store.GetApproval(ctx, tenantID, id)
	if err != nil {
		return domapproval.Approval{}, fmt.Errorf("get approval: %w", err)
	}
	from := a.Status()
	retracted, err := a.Reject(d.Reason, d.Answer, d.Notes, d.Reviewer, s.now())
	if err != nil {
		return domapproval.Approval{}, err
	}
	if err := s.store.ResolveApproval(ctx, &a, from, conversation.StatusRejected, ""); err != nil {
		return domapproval.Approval{}, fmt.Errorf("resolve approval: %w", err)
	}

	action := "reject"
	if retracted {
		action = "retract"
		if _, err := s.index.DeleteByDocument(ctx, a.TenantID(), record.VerifiedDocumentID(a.ID())); err != nil {
			metrics.FeedbackIndexFailuresTotal.WithLabelValues("delete").Inc()
			logger.FromContext(ctx).Error("Failed to remove verified answer",
				zap.String("approval_id", a.ID()), zap.Error(err))
		}
	}
	metrics.ApprovalsResolvedTotal.WithLabelValues(action).Inc()
	return a, nil
}

func (s *Service) indexVerified(ctx context.Context, a *domapproval.Approval) error {
	vecs, err := s.embedder.EmbedDocuments(ctx, []string{a.Question()})
	if err != nil {
		return fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed question: no vector: %w", domain.ErrEmbeddingProviderError)
	}
	rec := record.NewVerified(a.ID(), a.TenantID(), a.DepartmentID(), a.Question(), a.ApprovedAnswer(), vecs[0])
	if err := s.index.Upsert(ctx, []record.Record{rec}); err != nil {
		return fmt.Errorf("upsert verified answer: %w", err)
	}
	return nil
}
