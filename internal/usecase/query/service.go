package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/approval"
	"github.com/kailas-cloud/knowledgeops/internal/domain/confidence"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
	"github.com/kailas-cloud/knowledgeops/internal/logger"
	"github.com/kailas-cloud/knowledgeops/internal/metrics"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/generation"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/retrieval"
)

// MaxQueryChars bounds the question length.
const MaxQueryChars = 5000

const (
	visionFailedFmt    = "[Image attached but could not be processed: %v]"
	imageAnalysisBlock = "\n\n[Image Analysis]\n"
)

// Request is one user question.
type Request struct {
	TenantID       string
	UserID         string
	DepartmentID   string
	ConversationID string // empty starts a new conversation
	Text           string
	Image          *domain.Image
	// OnToken, when set, receives the answer incrementally.
	OnToken func(string) error
}

// Response is always produced once the department and conversation resolve,
// even when stages degrade.
type Response struct {
	Answer         string
	Sources        []conversation.Source
	Confidence     float64
	NeedsApproval  bool
	ModelUsed      string
	TokensInput    int
	TokensOutput   int
	LatencyMs      float64
	ConversationID string
	MessageID      string
	ApprovalID     string
	Degraded       []string
	Trail          []State
}

// Timeouts bound each external stage. Zero disables the bound.
type Timeouts struct {
	Vision    time.Duration
	Retrieval time.Duration
}

// Service runs the question-answering pipeline.
type Service struct {
	depts     Departments
	convs     Conversations
	retriever Retriever
	generator Generator
	vision    Vision
	scorer    Scorer
	timeouts  Timeouts
	maxCtx    int
	now       func() time.Time
	newID     func() string
}

// New creates a query orchestrator. vision may be nil.
func New(depts Departments, convs Conversations, retriever Retriever, generator Generator, vision Vision, scorer Scorer) *Service {
	return &Service{
		depts:     depts,
		convs:     convs,
		retriever: retriever,
		generator: generator,
		vision:    vision,
		scorer:    scorer,
		maxCtx:    retrieval.DefaultMaxContextTokens,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithTimeouts sets per-stage timeouts.
func (s *Service) WithTimeouts(t Timeouts) *Service {
	s.timeouts = t
	return s
}

// WithMaxContextTokens sets the default context budget for departments that set none.
func (s *Service) WithMaxContextTokens(n int) *Service {
	if n > 0 {
		s.maxCtx = n
	}
	return s
}

type run struct {
	req     Request
	dept    department.Config
	conv    conversation.Conversation
	newConv bool

	imageDesc string
	results   []result.Result
	kbContext string
	answer    generation.Answer
	score     confidence.Assessment

	degraded []string
	trail    []State
}

func (r *run) enter(st State) { r.trail = append(r.trail, st) }

// Ask answers a question. Only invalid input, an unknown department or conversation
// and persistence failures are returned as errors; every other failure degrades the answer.
func (s *Service) Ask(ctx context.Context, req Request) (Response, error) {
	start := s.now()
	req.Text = strings.TrimSpace(req.Text)
	if err := validate(req); err != nil {
		return Response{}, err
	}

	log := logger.FromContext(ctx).With(
		zap.String("tenant_id", req.TenantID),
		zap.String("department_id", req.DepartmentID),
	)
	ctx = logger.ContextWithLogger(ctx, log)

	r := &run{req: req}
	r.enter(StateReceived)

	dept, err := s.depts.Get(ctx, req.TenantID, req.DepartmentID)
	if err != nil {
		return Response{}, fmt.Errorf("route department: %w", err)
	}
	r.dept = dept
	if err := s.openConversation(ctx, r); err != nil {
		return Response{}, err
	}
	r.enter(StateRouted)

	s.gather(ctx, r)
	s.generate(ctx, r)
	s.scoreAnswer(r)

	resp, err := s.persist(ctx, r)
	if err != nil {
		return Response{}, err
	}
	resp.LatencyMs = float64(s.now().Sub(start).Microseconds()) / 1000

	outcome := string(StateAutoApproved)
	if resp.NeedsApproval {
		outcome = string(StateEscalated)
		metrics.ApprovalsCreatedTotal.Inc()
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	metrics.QueryConfidence.Observe(resp.Confidence)
	metrics.QueryDuration.Observe(s.now().Sub(start).Seconds())

	log.Info("Query answered",
		zap.String("conversation_id", resp.ConversationID),
		zap.Float64("confidence", resp.Confidence),
		zap.Bool("needs_approval", resp.NeedsApproval),
		zap.Strings("degraded", resp.Degraded),
	)
	return resp, nil
}

func validate(req Request) error {
	if req.TenantID == "" || req.DepartmentID == "" {
		return fmt.Errorf("tenant and department are required: %w", domain.ErrInvalidInput)
	}
	if req.Text == "" {
		return fmt.Errorf("query text is required: %w", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(req.Text) > MaxQueryChars {
		return fmt.Errorf("query text too long (max %d): %w", MaxQueryChars, domain.ErrInvalidInput)
	}
	if req.Image != nil && len(req.Image.Data) == 0 {
		return fmt.Errorf("image data is empty: %w", domain.ErrInvalidInput)
	}
	return nil
}

func (s *Service) openConversation(ctx context.Context, r *run) error {
	if r.req.ConversationID != "" {
		conv, err := s.convs.GetConversation(ctx, r.req.TenantID, r.req.ConversationID)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		r.conv = conv
		return nil
	}
	now := s.now()
	r.conv = conversation.Conversation{
		ID:           s.newID(),
		TenantID:     r.req.TenantID,
		DepartmentID: r.req.DepartmentID,
		UserID:       r.req.UserID,
		Title:        conversation.TitleFrom(r.req.Text),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.newConv = true
	return nil
}

// gather runs vision and retrieval concurrently; neither can fail the query.
func (s *Service) gather(ctx context.Context, r *run) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	markDegraded := func(stage string, err error) {
		mu.Lock()
		r.degraded = append(r.degraded, stage)
		mu.Unlock()
		metrics.DegradedStagesTotal.WithLabelValues(stage).Inc()
		logger.FromContext(ctx).Warn("Pipeline stage degraded", zap.String("stage", stage), zap.Error(err))
	}

	withVision := r.req.Image != nil && s.vision != nil && r.dept.VisionEnabled
	if withVision {
		g.Go(func() error {
			vctx, cancel := withTimeout(ctx, s.timeouts.Vision)
			defer cancel()
			desc, err := s.vision.Describe(vctx, *r.req.Image, r.req.Text)
			if err != nil {
				markDegraded(StageVision, err)
				desc = fmt.Sprintf(visionFailedFmt, err)
			}
			r.imageDesc = desc
			return nil
		})
	}

	g.Go(func() error {
		rctx, cancel := withTimeout(ctx, s.timeouts.Retrieval)
		defer cancel()
		results, err := s.retriever.Retrieve(rctx, r.req.TenantID, r.req.DepartmentID, r.req.Text, r.dept.TopK)
		if err != nil {
			markDegraded(StageRetrieval, err)
			results = nil
		}
		r.results = results
		return nil
	})

	_ = g.Wait()

	if withVision {
		r.enter(StateVision)
	}

	budget := r.dept.MaxContextTokens
	if budget <= 0 {
		budget = s.maxCtx
	}
	r.kbContext = retrieval.BuildContext(r.results, budget)
	if r.imageDesc != "" {
		r.kbContext += imageAnalysisBlock + r.imageDesc
	}
	r.enter(StateRetrieved)
}

func (s *Service) generate(ctx context.Context, r *run) {
	greq := generation.Request{
		Query:        r.req.Text,
		Context:      r.kbContext,
		SystemPrompt: r.dept.Prompt(),
		Model:        r.dept.Model,
	}
	if r.req.OnToken != nil {
		r.answer = s.generator.GenerateStream(ctx, greq, r.req.OnToken)
	} else {
		r.answer = s.generator.Generate(ctx, greq)
	}
	if r.answer.Degraded {
		r.degraded = append(r.degraded, StageGeneration)
		metrics.DegradedStagesTotal.WithLabelValues(StageGeneration).Inc()
	}
	r.enter(StateGenerated)
}

func (s *Service) scoreAnswer(r *run) {
	threshold := r.dept.Threshold()
	if r.answer.Degraded {
		r.score = confidence.Assessment{Confidence: 0, NeedsApproval: threshold > 0}
	} else {
		r.score = s.scorer.Score(r.answer.Text, r.results, threshold)
	}
	r.enter(StateScored)
	if r.score.NeedsApproval {
		r.enter(StateEscalated)
	} else {
		r.enter(StateAutoApproved)
	}
}

func (s *Service) persist(ctx context.Context, r *run) (Response, error) {
	now := s.now()
	sources := toSources(r.results)

	user := &conversation.Message{
		ID:             s.newID(),
		ConversationID: r.conv.ID,
		Role:           domain.RoleUser,
		Content:        r.req.Text,
		Status:         conversation.StatusCompleted,
		CreatedAt:      now,
	}
	status := conversation.StatusCompleted
	if r.score.NeedsApproval {
		status = conversation.StatusPendingApproval
	}
	assistant := &conversation.Message{
		ID:             s.newID(),
		ConversationID: r.conv.ID,
		Role:           domain.RoleAssistant,
		Content:        r.answer.Text,
		Confidence:     r.score.Confidence,
		ModelUsed:      r.answer.Model,
		TokensInput:    r.answer.TokensInput,
		TokensOutput:   r.answer.TokensOutput,
		LatencyMs:      float64(r.answer.Latency.Microseconds()) / 1000,
		Sources:        sources,
		Status:         status,
		CreatedAt:      now,
	}

	ex := conversation.Exchange{
		Conversation:    &r.conv,
		NewConversation: r.newConv,
		User:            user,
		Assistant:       assistant,
	}
	if r.score.NeedsApproval {
		a, err := approval.New(s.newID(), r.req.TenantID, r.req.DepartmentID, assistant.ID, r.req.UserID,
			r.req.Text, r.answer.Text, approval.PriorityNormal, now)
		if err != nil {
			return Response{}, fmt.Errorf("create approval: %w", err)
		}
		ex.Approval = &a
	}

	if err := s.convs.SaveExchange(ctx, ex); err != nil {
		return Response{}, fmt.Errorf("save exchange: %w", err)
	}

	if r.score.NeedsApproval {
		r.enter(StatePendingApproval)
	} else {
		r.enter(StateReturned)
	}

	resp := Response{
		Answer:         r.answer.Text,
		Sources:        sources,
		Confidence:     r.score.Confidence,
		NeedsApproval:  r.score.NeedsApproval,
		ModelUsed:      r.answer.Model,
		TokensInput:    r.answer.TokensInput,
		TokensOutput:   r.answer.TokensOutput,
		ConversationID: r.conv.ID,
		MessageID:      assistant.ID,
		Degraded:       r.degraded,
		Trail:          r.trail,
	}
	if ex.Approval != nil {
		resp.ApprovalID = ex.Approval.ID()
	}
	return resp, nil
}

func toSources(results []result.Result) []conversation.Source {
	out := make([]conversation.Source, 0, len(results))
	for _, h := range results {
		title := h.Title()
		if title == "" {
			title = "Unknown"
		}
		out = append(out, conversation.Source{
			Title:      title,
			Chunk:      conversation.Excerpt(h.Content()),
			Score:      h.Score(),
			DocumentID: h.DocumentID(),
			SourceType: string(h.SourceType()),
		})
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
