package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
)

const approvalColumns = `id, tenant_id, department_id, message_id, requested_by, reviewed_by, question,
	original_answer, approved_answer, rejection_reason, reviewer_notes, status, priority, created_at, reviewed_at`

// DefaultListLimit caps approval listings when the caller passes no limit.
const DefaultListLimit = 100

// GetApproval returns a tenant's approval ticket.
func (s *Store) GetApproval(ctx context.Context, tenantID, id string) (approval.Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE id = ? AND tenant_id = ?`, id, tenantID)
	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Approval{}, domain.ErrApprovalNotFound
	}
	if err != nil {
		return approval.Approval{}, fmt.Errorf("getting approval %s: %w", id, err)
	}
	return a, nil
}

// ListApprovals returns a tenant's approvals, oldest first. Empty status lists all.
func (s *Store) ListApprovals(
	ctx context.Context, tenantID string, status approval.Status, limit int,
) ([]approval.Approval, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := `SELECT ` + approvalColumns + ` FROM approvals WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing approvals: %w", err)
	}
	defer rows.Close()

	var out []approval.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveApproval persists a reviewed approval together with its message's new status.
// The update only applies while the stored status is still from; a ticket resolved by
// someone else in the meantime yields ErrInvalidTransition. An empty content leaves the
// message text unchanged.
func (s *Store) ResolveApproval(
	ctx context.Context, a *approval.Approval, from approval.Status, msgStatus conversation.Status, content string,
) error {
	sn := a.Snapshot()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE approvals SET status = ?, approved_answer = ?, rejection_reason = ?,
				reviewer_notes = ?, reviewed_by = ?, reviewed_at = ?
			WHERE id = ? AND tenant_id = ? AND status = ?
		`, string(sn.Status), sn.ApprovedAnswer, sn.RejectionReason, sn.ReviewerNotes, sn.ReviewedBy,
			formatTime(sn.ReviewedAt), sn.ID, sn.TenantID, string(from))
		if err != nil {
			return fmt.Errorf("updating approval %s: %w", sn.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating approval %s: %w", sn.ID, err)
		}
		if n == 0 {
			return staleApproval(ctx, tx, sn.TenantID, sn.ID, from)
		}

		q := `UPDATE messages SET status = ? WHERE id = ?`
		args := []any{string(msgStatus), sn.MessageID}
		if content != "" {
			q = `UPDATE messages SET status = ?, content = ? WHERE id = ?`
			args = []any{string(msgStatus), content, sn.MessageID}
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("updating message %s: %w", sn.MessageID, err)
		}
		return nil
	})
}

// staleApproval explains a conditional update that matched no row.
func staleApproval(ctx context.Context, tx *sql.Tx, tenantID, id string, from approval.Status) error {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM approvals WHERE id = ? AND tenant_id = ?`, id, tenantID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrApprovalNotFound
	}
	if err != nil {
		return fmt.Errorf("reading approval %s: %w", id, err)
	}
	return fmt.Errorf("approval %s is %s, expected %s: %w", id, current, from, domain.ErrInvalidTransition)
}

func insertApproval(ctx context.Context, tx *sql.Tx, a *approval.Approval) error {
	sn := a.Snapshot()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO approvals (`+approvalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sn.ID, sn.TenantID, sn.DepartmentID, sn.MessageID, sn.RequestedBy, sn.ReviewedBy, sn.Question,
		sn.OriginalAnswer, sn.ApprovedAnswer, sn.RejectionReason, sn.ReviewerNotes,
		string(sn.Status), string(sn.Priority), formatTime(sn.CreatedAt), formatTime(sn.ReviewedAt)); err != nil {
		return fmt.Errorf("creating approval: %w", err)
	}
	return nil
}

func scanApproval(sc scanner) (approval.Approval, error) {
	var sn approval.Snapshot
	var status, priority, created, reviewed string
	if err := sc.Scan(&sn.ID, &sn.TenantID, &sn.DepartmentID, &sn.MessageID, &sn.RequestedBy, &sn.ReviewedBy,
		&sn.Question, &sn.OriginalAnswer, &sn.ApprovedAnswer, &sn.RejectionReason, &sn.ReviewerNotes,
		&status, &priority, &created, &reviewed); err != nil {
		return approval.Approval{}, err
	}
	sn.Status = approval.Status(status)
	sn.Priority = approval.Priority(priority)
	sn.CreatedAt = parseTime(created)
	sn.ReviewedAt = parseTime(reviewed)
	return approval.Reconstruct(sn), nil
}
