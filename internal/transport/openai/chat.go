package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/metrics"
)

// ChatConfig holds the chat backend settings.
type ChatConfig struct {
	APIKey            string
	BaseURL           string
	DefaultModel      string
	VisionModel       string
	MaxTokens         int
	Temperature       float32
	RequestsPerSecond float64 // 0 = unlimited
	Burst             int
	Logger            *zap.Logger
}

// ChatClient is a language-model client for any OpenAI-compatible API (OpenAI, Ollama /v1, vLLM).
// Requests share one token-bucket limiter so a burst of queries cannot overload a local backend.
type ChatClient struct {
	client       *openai.Client
	limiter      *rate.Limiter
	defaultModel string
	visionModel  string
	maxTokens    int
	temperature  float32
	logger       *zap.Logger
}

// NewChatClient creates an OpenAI-compatible chat client.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, cfg.Burst))
	}

	return &ChatClient{
		client:       newClient(apiKey, strings.TrimRight(cfg.BaseURL, "/")),
		limiter:      limiter,
		defaultModel: cfg.DefaultModel,
		visionModel:  cfg.VisionModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		logger:       logger,
	}
}

// DefaultModel returns the model used when a caller passes none.
func (c *ChatClient) DefaultModel() string { return c.defaultModel }

// Chat sends the messages and blocks until the full answer is available.
func (c *ChatClient) Chat(ctx context.Context, messages []domain.ChatMessage, model string) (domain.Completion, error) {
	model = c.model(model)
	if err := c.wait(ctx); err != nil {
		return domain.Completion{}, err
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages, model))
	c.observe(model, "chat", start, err)
	if err != nil {
		return domain.Completion{}, parseAPIError("chat", err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("chat response has no choices: %w", domain.ErrLLMProviderError)
	}

	return domain.Completion{
		Content:          resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Stream sends the messages and calls onToken for every incremental piece of the answer.
// The returned Completion holds the concatenated answer. A non-nil error from onToken
// stops the stream and is returned as is.
func (c *ChatClient) Stream(
	ctx context.Context,
	messages []domain.ChatMessage,
	model string,
	onToken func(token string) error,
) (domain.Completion, error) {
	model = c.model(model)
	if err := c.wait(ctx); err != nil {
		return domain.Completion{}, err
	}

	req := c.request(messages, model)
	req.Stream = true

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		c.observe(model, "stream", start, err)
		return domain.Completion{}, parseAPIError("chat stream", err, domain.ErrLLMProviderError)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.observe(model, "stream", start, err)
			return domain.Completion{}, parseAPIError("chat stream", err, domain.ErrLLMProviderError)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		sb.WriteString(token)
		if onToken != nil {
			if err := onToken(token); err != nil {
				c.observe(model, "stream", start, err)
				return domain.Completion{}, err
			}
		}
	}

	c.observe(model, "stream", start, nil)
	return domain.Completion{Content: sb.String(), Model: model}, nil
}

// ListModels returns the model ids served by the backend, sorted.
func (c *ChatClient) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, parseAPIError("list models", err, domain.ErrLLMProviderError)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping checks that the backend is reachable.
func (c *ChatClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("llm ping: %w", err)
	}
	return nil
}

func (c *ChatClient) model(model string) string {
	if model == "" {
		return c.defaultModel
	}
	return model
}

func (c *ChatClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm rate limit: %w: %w", err, domain.ErrLLMProviderError)
	}
	return nil
}

func (c *ChatClient) request(messages []domain.ChatMessage, model string) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: c.temperature,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	return req
}

func (c *ChatClient) observe(model, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		c.logger.Warn("LLM request failed", zap.String("model", model), zap.String("op", op), zap.Error(err))
	}
	metrics.LLMRequestsTotal.WithLabelValues(model, op, status).Inc()
	metrics.LLMRequestDuration.WithLabelValues(model, op).Observe(time.Since(start).Seconds())
}
