package chi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	domapproval "github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	approvaluc "github.com/kailas-cloud/knowledgeops/internal/usecase/approval"
	healthuc "github.com/kailas-cloud/knowledgeops/internal/usecase/health"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/ingestion"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/query"
)

const (
	maxBodyBytes      = 32 << 20
	defaultPageLimit  = 50
	maxPageLimit      = 200
	reviewerAnonymous = "anonymous"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the knowledge-ops HTTP API.
type Server struct {
	queries       Asker
	documents     Documents
	approvals     Approvals
	messages      Messages
	models        ModelLister
	health        HealthChecker
	departments   DepartmentLister
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	queries Asker,
	documents Documents,
	approvals Approvals,
	messages Messages,
	models ModelLister,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		queries:   queries,
		documents: documents,
		approvals: approvals,
		messages:  messages,
		models:    models,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDepartmentNotFound, http.StatusNotFound, ErrorCodeDepartmentNotFound),
		sentinelHandler(domain.ErrConversationNotFound, http.StatusNotFound, ErrorCodeConversationNotFound),
		sentinelHandler(domain.ErrApprovalNotFound, http.StatusNotFound, ErrorCodeApprovalNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, ErrorCodeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, ErrorCodeInvalidTransition),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, ErrorCodeLLMProviderError),
	}
	return s
}

// WithDepartments enables GET /api/v1/departments.
func (s *Server) WithDepartments(d DepartmentLister) *Server {
	s.departments = d
	return s
}

// Routes registers the API on r. Health and metrics stay outside the identity scope.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r gochi.Router) {
		r.Use(IdentityMiddleware)

		r.Post("/query", s.Query)

		r.Post("/documents", s.CreateDocument)
		r.Get("/documents", s.ListDocuments)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)

		r.Get("/approvals", s.ListApprovals)
		r.Get("/approvals/{id}", s.GetApproval)
		r.Post("/approvals/{id}/approve", s.Approve)
		r.Post("/approvals/{id}/reject", s.Reject)

		r.Get("/conversations/{id}/messages", s.ListMessages)

		r.Get("/models", s.ListModels)

		if s.departments != nil {
			r.Get("/departments", s.ListDepartments)
		}
	})
}

// Query handles POST /api/v1/query. With ?stream=true the answer is sent as server-sent events.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.DepartmentID) == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "department_id is required")
		return
	}

	id := IdentityFromContext(r.Context())
	req := query.Request{
		TenantID:       id.TenantID,
		UserID:         id.UserID,
		DepartmentID:   body.DepartmentID,
		ConversationID: body.ConversationID,
		Text:           body.Text,
	}
	if body.Image != nil {
		img, err := imageFromAPI(body.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
			return
		}
		req.Image = &img
	}

	if stream, _ := strconv.ParseBool(r.URL.Query().Get("stream")); stream {
		s.streamQuery(w, r, req)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.queries.Ask(ctx, req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, queryToAPI(&resp))
}

func (s *Server) streamQuery(w http.ResponseWriter, r *http.Request, req query.Request) {
	sse := newEventStream(w)
	req.OnToken = func(tok string) error {
		return sse.send("token", map[string]string{"token": tok})
	}

	resp, err := s.queries.Ask(r.Context(), req)
	if err != nil {
		if !sse.started {
			s.handleDomainError(w, err)
			return
		}
		s.logger.Warn("query failed mid-stream", zap.Error(err))
		_ = sse.send("error", ErrorResponse{Code: ErrorCodeInternalError, Message: safeDomainMessage(err)})
		return
	}
	if err := sse.send("done", queryToAPI(&resp)); err != nil {
		s.logger.Debug("stream closed before completion", zap.Error(err))
	}
}

// CreateDocument handles POST /api/v1/documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var body ingestRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.DepartmentID) == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "department_id is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	doc, err := s.documents.Ingest(ctx, ingestion.Request{
		TenantID:     IdentityFromContext(r.Context()).TenantID,
		DepartmentID: body.DepartmentID,
		DocumentID:   body.DocumentID,
		Title:        body.Title,
		SourceName:   body.SourceName,
		Text:         body.Text,
		Metadata:     body.Metadata,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, documentToAPI(&doc))
}

// ListDocuments handles GET /api/v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context(),
		IdentityFromContext(r.Context()).TenantID, r.URL.Query().Get("department_id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentToAPI(&docs[i])
	}
	writeJSON(w, http.StatusOK, newList(items))
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), IdentityFromContext(r.Context()).TenantID, gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToAPI(&doc))
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(),
		IdentityFromContext(r.Context()).TenantID, gochi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListApprovals handles GET /api/v1/approvals.
func (s *Server) ListApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status domapproval.Status
	if raw := q.Get("status"); raw != "" {
		st, err := domapproval.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
			return
		}
		status = st
	}

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	list, err := s.approvals.List(r.Context(), IdentityFromContext(r.Context()).TenantID, status, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]approvalResponse, len(list))
	for i := range list {
		items[i] = approvalToAPI(&list[i])
	}
	writeJSON(w, http.StatusOK, newList(items))
}

// GetApproval handles GET /api/v1/approvals/{id}.
func (s *Server) GetApproval(w http.ResponseWriter, r *http.Request) {
	a, err := s.approvals.Get(r.Context(), IdentityFromContext(r.Context()).TenantID, gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approvalToAPI(&a))
}

// Approve handles POST /api/v1/approvals/{id}/approve.
func (s *Server) Approve(w http.ResponseWriter, r *http.Request) {
	var body approveRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}

	id := IdentityFromContext(r.Context())
	ctx, usage := domain.NewContextWithUsage(r.Context())
	a, err := s.approvals.Approve(ctx, id.TenantID, gochi.URLParam(r, "id"), approvaluc.Decision{
		Answer:   body.ApprovedAnswer,
		Notes:    body.ReviewerNotes,
		Reviewer: reviewer(id),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, approvalToAPI(&a))
}

// Reject handles POST /api/v1/approvals/{id}/reject. Rejecting an approved answer retracts it.
func (s *Server) Reject(w http.ResponseWriter, r *http.Request) {
	var body rejectRequest
	if !s.decode(w, r, &body) {
		return
	}

	id := IdentityFromContext(r.Context())
	a, err := s.approvals.Reject(r.Context(), id.TenantID, gochi.URLParam(r, "id"), approvaluc.Decision{
		Answer:   body.CorrectedAnswer,
		Reason:   body.RejectionReason,
		Notes:    body.ReviewerNotes,
		Reviewer: reviewer(id),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approvalToAPI(&a))
}

// ListMessages handles GET /api/v1/conversations/{id}/messages.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.messages.ListMessages(r.Context(),
		IdentityFromContext(r.Context()).TenantID, gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]messageResponse, len(msgs))
	for i := range msgs {
		items[i] = messageToAPI(&msgs[i])
	}
	writeJSON(w, http.StatusOK, newList(items))
}

// ListModels handles GET /api/v1/models.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.ListModels(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: models})
}

// ListDepartments handles GET /api/v1/departments.
func (s *Server) ListDepartments(w http.ResponseWriter, r *http.Request) {
	depts := s.departments.List(r.Context(), IdentityFromContext(r.Context()).TenantID)

	items := make([]departmentResponse, len(depts))
	for i := range depts {
		items[i] = departmentToAPI(&depts[i])
	}
	writeJSON(w, http.StatusOK, newList(items))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:       string(report.Status),
		Checks:       checks,
		EmbedderMode: report.EmbedderMode,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return s.decode(w, r, v)
}

func imageFromAPI(p *imagePayload) (domain.Image, error) {
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return domain.Image{}, fmt.Errorf("image data must be base64: %w", err)
	}
	if len(data) == 0 {
		return domain.Image{}, errors.New("image data is empty")
	}
	mime := p.MimeType
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return domain.Image{}, fmt.Errorf("unsupported image type %q", mime)
	}
	return domain.Image{Data: data, MimeType: mime}, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultPageLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return min(n, maxPageLimit), nil
}

func reviewer(id Identity) string {
	if id.UserID == "" {
		return reviewerAnonymous
	}
	return id.UserID
}

// setEmbeddingHeaders reports the embedding tokens a request consumed. Cache hits report zero.
func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set(HeaderEmbeddingTokens, strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Input errors keep their full text since they describe the caller's own request.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrDepartmentNotFound,
		domain.ErrConversationNotFound,
		domain.ErrApprovalNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrInvalidTransition,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrLLMProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
