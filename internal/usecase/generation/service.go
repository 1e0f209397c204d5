package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/logger"
)

const contextInstruction = "Use the following knowledge base context to answer the user's question. " +
	"Cite sources when applicable.\n\n"

const errorAnswerPrefix = "I apologize, but I encountered an error generating a response: "

const tokensPerWord = 1.3

// Request is one answer to generate.
type Request struct {
	Query        string
	Context      string
	SystemPrompt string
	Model        string // empty uses the client default
}

// Answer is the generator output. Degraded answers carry the apologetic error text
// and the cause; callers must not trust them.
type Answer struct {
	Text         string
	Model        string
	TokensInput  int
	TokensOutput int
	Latency      time.Duration
	Degraded     bool
	Err          error
}

// Service produces answers from a query and its retrieval context.
type Service struct {
	client  ChatClient
	timeout time.Duration
	now     func() time.Time
}

// New creates a generation service. timeout <= 0 disables the per-call deadline.
func New(client ChatClient, timeout time.Duration) *Service {
	return &Service{client: client, timeout: timeout, now: time.Now}
}

// BuildMessages assembles the prompt: system prompt, the context instruction when
// context is non-empty, then the user query.
func BuildMessages(query, kbContext, systemPrompt string) []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, 0, 3)
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	if kbContext != "" {
		msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: contextInstruction + kbContext})
	}
	return append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: query})
}

// Generate answers req. It never fails: backend errors yield a degraded Answer.
func (s *Service) Generate(ctx context.Context, req Request) Answer {
	return s.run(ctx, req, func(ctx context.Context, msgs []domain.ChatMessage, model string) (domain.Completion, error) {
		return s.client.Chat(ctx, msgs, model)
	})
}

// GenerateStream is Generate with incremental tokens passed to onToken as they arrive.
// A callback error aborts the stream and degrades the answer.
func (s *Service) GenerateStream(ctx context.Context, req Request, onToken func(string) error) Answer {
	return s.run(ctx, req, func(ctx context.Context, msgs []domain.ChatMessage, model string) (domain.Completion, error) {
		return s.client.Stream(ctx, msgs, model, onToken)
	})
}

type callFunc func(ctx context.Context, msgs []domain.ChatMessage, model string) (domain.Completion, error)

func (s *Service) run(ctx context.Context, req Request, call callFunc) Answer {
	model := req.Model
	if model == "" {
		model = s.client.DefaultModel()
	}
	msgs := BuildMessages(req.Query, req.Context, req.SystemPrompt)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	c, err := call(callCtx, msgs, model)
	latency := s.now().Sub(start)

	ans := Answer{Model: model, Latency: latency, TokensInput: estimateMessages(msgs)}
	if err != nil {
		logger.FromContext(ctx).Warn("Generation failed",
			zap.String("stage", "generation"), zap.String("model", model), zap.Error(err))
		ans.Text = errorAnswerPrefix + err.Error()
		ans.Degraded = true
		ans.Err = fmt.Errorf("generate: %w", err)
		return ans
	}

	ans.Text = c.Content
	if c.Model != "" {
		ans.Model = c.Model
	}
	ans.TokensOutput = EstimateTokens(c.Content)
	return ans
}

// EstimateTokens approximates the token count of s as words × 1.3, truncated.
func EstimateTokens(s string) int {
	return int(float64(len(strings.Fields(s))) * tokensPerWord)
}

func estimateMessages(msgs []domain.ChatMessage) int {
	words := 0
	for _, m := range msgs {
		words += len(strings.Fields(m.Content))
	}
	return int(float64(words) * tokensPerWord)
}
