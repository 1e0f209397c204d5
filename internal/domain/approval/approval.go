package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

// Status is the review state of an approval ticket.
type Status string

const (
	// StatusPending is the only non-terminal state.
	StatusPending Status = "pending"
	// StatusApproved marks an accepted answer. It can still be retracted into StatusRejected.
	StatusApproved Status = "approved"
	// StatusRejected is final.
	StatusRejected Status = "rejected"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown approval status %q: %w", s, domain.ErrInvalidInput)
	}
}

// Priority orders the review queue.
type Priority string

// Escalations from the query pipeline are always normal priority.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Approval is a human-review ticket attached to one assistant message.
type Approval struct {
	id              string
	tenantID        string
	departmentID    string
	messageID       string
	requestedBy     string
	reviewedBy      string
	question        string
	originalAnswer  string
	approvedAnswer  string
	rejectionReason string
	reviewerNotes   string
	status          Status
	priority        Priority
	createdAt       time.Time
	reviewedAt      time.Time
}

// New validates and creates a pending Approval.
func New(
	id, tenantID, departmentID, messageID, requestedBy, question, originalAnswer string,
	priority Priority, now time.Time,
) (Approval, error) {
	if id == "" || messageID == "" {
		return Approval{}, fmt.Errorf("approval and message ids are required: %w", domain.ErrInvalidInput)
	}
	if tenantID == "" || departmentID == "" {
		return Approval{}, fmt.Errorf("tenant and department are required: %w", domain.ErrInvalidInput)
	}
	if priority == "" {
		priority = PriorityNormal
	}
	return Approval{
		id:             id,
		tenantID:       tenantID,
		departmentID:   departmentID,
		messageID:      messageID,
		requestedBy:    requestedBy,
		question:       question,
		originalAnswer: originalAnswer,
		status:         StatusPending,
		priority:       priority,
		createdAt:      now,
	}, nil
}

// Snapshot is the flat persisted form of an Approval.
type Snapshot struct {
	ID              string
	TenantID        string
	DepartmentID    string
	MessageID       string
	RequestedBy     string
	ReviewedBy      string
	Question        string
	OriginalAnswer  string
	ApprovedAnswer  string
	RejectionReason string
	ReviewerNotes   string
	Status          Status
	Priority        Priority
	CreatedAt       time.Time
	ReviewedAt      time.Time
}

// Reconstruct creates an Approval without validation (storage hydration).
func Reconstruct(s Snapshot) Approval {
	return Approval{
		id:              s.ID,
		tenantID:        s.TenantID,
		departmentID:    s.DepartmentID,
		messageID:       s.MessageID,
		requestedBy:     s.RequestedBy,
		reviewedBy:      s.ReviewedBy,
		question:        s.Question,
		originalAnswer:  s.OriginalAnswer,
		approvedAnswer:  s.ApprovedAnswer,
		rejectionReason: s.RejectionReason,
		reviewerNotes:   s.ReviewerNotes,
		status:          s.Status,
		priority:        s.Priority,
		createdAt:       s.CreatedAt,
		reviewedAt:      s.ReviewedAt,
	}
}

// Snapshot returns the flat persisted form.
func (a *Approval) Snapshot() Snapshot {
	return Snapshot{
		ID:              a.id,
		TenantID:        a.tenantID,
		DepartmentID:    a.departmentID,
		MessageID:       a.messageID,
		RequestedBy:     a.requestedBy,
		ReviewedBy:      a.reviewedBy,
		Question:        a.question,
		OriginalAnswer:  a.originalAnswer,
		ApprovedAnswer:  a.approvedAnswer,
		RejectionReason: a.rejectionReason,
		ReviewerNotes:   a.reviewerNotes,
		Status:          a.status,
		Priority:        a.priority,
		CreatedAt:       a.createdAt,
		ReviewedAt:      a.reviewedAt,
	}
}

// ID returns the approval identifier.
func (a *Approval) ID() string { return a.id }

// TenantID returns the owning tenant.
func (a *Approval) TenantID() string { return a.tenantID }

// DepartmentID returns the owning department.
func (a *Approval) DepartmentID() string { return a.departmentID }

// MessageID returns the assistant message under review.
func (a *Approval) MessageID() string { return a.messageID }

// Question returns the user question that produced the answer.
func (a *Approval) Question() string { return a.question }

// OriginalAnswer returns the generated answer.
func (a *Approval) OriginalAnswer() string { return a.originalAnswer }

// ApprovedAnswer returns the reviewer-approved or corrected answer.
func (a *Approval) ApprovedAnswer() string { return a.approvedAnswer }

// RejectionReason returns why the answer was rejected.
func (a *Approval) RejectionReason() string { return a.rejectionReason }

// Status returns the review state.
func (a *Approval) Status() Status { return a.status }

// Priority returns the queue priority.
func (a *Approval) Priority() Priority { return a.priority }

// ReviewedAt returns when the ticket was last resolved (zero while pending).
func (a *Approval) ReviewedAt() time.Time { return a.reviewedAt }

// Approve moves a pending ticket to approved. An empty answer keeps the original one.
func (a *Approval) Approve(answer, notes, reviewer string, now time.Time) error {
	if a.status != StatusPending {
		return fmt.Errorf("approve %s approval: %w", a.status, domain.ErrInvalidTransition)
	}
	if strings.TrimSpace(answer) == "" {
		answer = a.originalAnswer
	}
	a.status = StatusApproved
	a.approvedAnswer = answer
	a.reviewerNotes = notes
	a.reviewedBy = reviewer
	a.reviewedAt = now
	return nil
}

// Reject moves a pending or approved ticket to rejected and reports whether a
// prior approval was retracted. A corrected answer is kept as the approved answer.
func (a *Approval) Reject(reason, corrected, notes, reviewer string, now time.Time) (bool, error) {
	if strings.TrimSpace(reason) == "" {
		return false, fmt.Errorf("rejection reason is required: %w", domain.ErrInvalidInput)
	}
	if a.status == StatusRejected {
		return false, fmt.Errorf("reject %s approval: %w", a.status, domain.ErrInvalidTransition)
	}
	retracted := a.status == StatusApproved
	a.status = StatusRejected
	a.rejectionReason = reason
	if corrected != "" {
		a.approvedAnswer = corrected
	}
	a.reviewerNotes = notes
	a.reviewedBy = reviewer
	a.reviewedAt = now
	return retracted, nil
}
