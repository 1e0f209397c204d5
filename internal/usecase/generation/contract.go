package generation

import (
	"context"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

// ChatClient is the language-model backend.
type ChatClient interface {
	DefaultModel() string
	Chat(ctx context.Context, msgs []domain.ChatMessage, model string) (domain.Completion, error)
	Stream(ctx context.Context, msgs []domain.ChatMessage, model string, onToken func(string) error) (domain.Completion, error)
}
