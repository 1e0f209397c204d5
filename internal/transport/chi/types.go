package chi

import (
	"time"

	domapproval "github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/document"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/query"
)

// ErrorCode is the machine-readable error kind of an API error.
type ErrorCode string

const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeDepartmentNotFound     ErrorCode = "department_not_found"
	ErrorCodeConversationNotFound   ErrorCode = "conversation_not_found"
	ErrorCodeApprovalNotFound       ErrorCode = "approval_not_found"
	ErrorCodeDocumentNotFound       ErrorCode = "document_not_found"
	ErrorCodeNotFound               ErrorCode = "not_found"
	ErrorCodeInvalidTransition      ErrorCode = "invalid_transition"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeLLMProviderError       ErrorCode = "llm_provider_error"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type imagePayload struct {
	Data     string `json:"data"` // base64
	MimeType string `json:"mime_type"`
}

type queryRequest struct {
	Text           string        `json:"text"`
	DepartmentID   string        `json:"department_id"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Image          *imagePayload `json:"image,omitempty"`
}

type queryResponse struct {
	Answer         string                `json:"answer"`
	Sources        []conversation.Source `json:"sources"`
	Confidence     float64               `json:"confidence"`
	NeedsApproval  bool                  `json:"needs_approval"`
	ModelUsed      string                `json:"model_used"`
	TokensInput    int                   `json:"tokens_input"`
	TokensOutput   int                   `json:"tokens_output"`
	LatencyMs      float64               `json:"latency_ms"`
	ConversationID string                `json:"conversation_id"`
	MessageID      string                `json:"message_id"`
	ApprovalID     string                `json:"approval_id,omitempty"`
	Degraded       []string              `json:"degraded,omitempty"`
	Trail          []query.State         `json:"trail"`
}

func queryToAPI(r *query.Response) queryResponse {
	sources := r.Sources
	if sources == nil {
		sources = []conversation.Source{}
	}
	return queryResponse{
		Answer:         r.Answer,
		Sources:        sources,
		Confidence:     r.Confidence,
		NeedsApproval:  r.NeedsApproval,
		ModelUsed:      r.ModelUsed,
		TokensInput:    r.TokensInput,
		TokensOutput:   r.TokensOutput,
		LatencyMs:      r.LatencyMs,
		ConversationID: r.ConversationID,
		MessageID:      r.MessageID,
		ApprovalID:     r.ApprovalID,
		Degraded:       r.Degraded,
		Trail:          r.Trail,
	}
}

type ingestRequest struct {
	DocumentID   string            `json:"document_id,omitempty"`
	DepartmentID string            `json:"department_id"`
	Title        string            `json:"title"`
	SourceName   string            `json:"source_name,omitempty"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type documentResponse struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"department_id"`
	Title        string    `json:"title"`
	SourceName   string    `json:"source_name,omitempty"`
	Status       string    `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func documentToAPI(d *document.Document) documentResponse {
	return documentResponse{
		ID:           d.ID(),
		DepartmentID: d.DepartmentID(),
		Title:        d.Title(),
		SourceName:   d.SourceName(),
		Status:       string(d.Status()),
		ChunkCount:   d.ChunkCount(),
		Error:        d.Error(),
		CreatedAt:    d.CreatedAt(),
		UpdatedAt:    d.UpdatedAt(),
	}
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: len(items)}
}

type approveRequest struct {
	ApprovedAnswer string `json:"approved_answer,omitempty"`
	ReviewerNotes  string `json:"reviewer_notes,omitempty"`
}

type rejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
	CorrectedAnswer string `json:"corrected_answer,omitempty"`
	ReviewerNotes   string `json:"reviewer_notes,omitempty"`
}

type approvalResponse struct {
	ID              string     `json:"id"`
	DepartmentID    string     `json:"department_id"`
	MessageID       string     `json:"message_id"`
	RequestedBy     string     `json:"requested_by,omitempty"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	Question        string     `json:"question"`
	OriginalAnswer  string     `json:"original_answer"`
	ApprovedAnswer  string     `json:"approved_answer,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReviewerNotes   string     `json:"reviewer_notes,omitempty"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	CreatedAt       time.Time  `json:"created_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
}

func approvalToAPI(a *domapproval.Approval) approvalResponse {
	sn := a.Snapshot()
	resp := approvalResponse{
		ID:              sn.ID,
		DepartmentID:    sn.DepartmentID,
		MessageID:       sn.MessageID,
		RequestedBy:     sn.RequestedBy,
		ReviewedBy:      sn.ReviewedBy,
		Question:        sn.Question,
		OriginalAnswer:  sn.OriginalAnswer,
		ApprovedAnswer:  sn.ApprovedAnswer,
		RejectionReason: sn.RejectionReason,
		ReviewerNotes:   sn.ReviewerNotes,
		Status:          string(sn.Status),
		Priority:        string(sn.Priority),
		CreatedAt:       sn.CreatedAt,
	}
	if !sn.ReviewedAt.IsZero() {
		t := sn.ReviewedAt
		resp.ReviewedAt = &t
	}
	return resp
}

type messageResponse struct {
	ID           string                `json:"id"`
	Role         string                `json:"role"`
	Content      string                `json:"content"`
	Confidence   *float64              `json:"confidence,omitempty"`
	ModelUsed    string                `json:"model_used,omitempty"`
	TokensInput  int                   `json:"tokens_input,omitempty"`
	TokensOutput int                   `json:"tokens_output,omitempty"`
	LatencyMs    float64               `json:"latency_ms,omitempty"`
	Sources      []conversation.Source `json:"sources,omitempty"`
	Status       string                `json:"status"`
	CreatedAt    time.Time             `json:"created_at"`
}

func messageToAPI(m *conversation.Message) messageResponse {
	resp := messageResponse{
		ID:           m.ID,
		Role:         m.Role,
		Content:      m.Content,
		ModelUsed:    m.ModelUsed,
		TokensInput:  m.TokensInput,
		TokensOutput: m.TokensOutput,
		LatencyMs:    m.LatencyMs,
		Sources:      m.Sources,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
	}
	if m.Role == "assistant" {
		c := m.Confidence
		resp.Confidence = &c
	}
	return resp
}

type healthResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	EmbedderMode string            `json:"embedder_mode,omitempty"`
}

type modelsResponse struct {
	Models []string `json:"models"`
}

type departmentResponse struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Kind                string  `json:"kind,omitempty"`
	Model               string  `json:"model,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	VisionEnabled       bool    `json:"vision_enabled"`
}

func departmentToAPI(d *department.Config) departmentResponse {
	return departmentResponse{
		ID:                  d.ID,
		Name:                d.Name,
		Kind:                d.Kind,
		Model:               d.Model,
		ConfidenceThreshold: d.Threshold(),
		VisionEnabled:       d.VisionEnabled,
	}
}
