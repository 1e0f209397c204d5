package generation

import (
	"context"
	"time"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

type mockChat struct {
	chatFn      func(ctx context.Context, msgs []domain.ChatMessage, model string) (domain.Completion, error)
	streamFn    func(ctx context.Context, msgs []domain.ChatMessage, model string, onToken func(string) error) (domain.Completion, error)
	lastMsgs    []domain.ChatMessage
	lastModel   string
	hadDeadline bool
}

func (m *mockChat) DefaultModel() string { return "llama3.1:8b" }

func (m *mockChat) Chat(ctx context.Context, msgs []domain.ChatMessage, model string) (domain.Completion, error) {
	m.record(ctx, msgs, model)
	if m.chatFn != nil {
		return m.chatFn(ctx, msgs, model)
	}
	return domain.Completion{Content: "ok", Model: model}, nil
}

func (m *mockChat) Stream(
	ctx context.Context, msgs []domain.ChatMessage, model string, onToken func(string) error,
) (domain.Completion, error) {
	m.record(ctx, msgs, model)
	if m.streamFn != nil {
		return m.streamFn(ctx, msgs, model, onToken)
	}
	return domain.Completion{}, nil
}

func (m *mockChat) record(ctx context.Context, msgs []domain.ChatMessage, model string) {
	m.lastMsgs = append([]domain.ChatMessage(nil), msgs...)
	m.lastModel = model
	_, m.hadDeadline = ctx.Deadline()
}

// fakeClock advances by step on every call.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}
