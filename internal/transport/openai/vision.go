package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

const visionPrompt = "Describe this image in detail. Transcribe any visible error messages, " +
	"log lines or UI state, and focus on what is relevant to this question: "

// Describe asks the vision model for a textual description of the image in the context of question.
func (c *ChatClient) Describe(ctx context.Context, img domain.Image, question string) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("empty image: %w", domain.ErrInvalidInput)
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported mime type %q: %w", mime, domain.ErrInvalidInput)
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	model := c.visionModel
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: visionPrompt + question},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURI(mime, img.Data),
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		}},
		Temperature: c.temperature,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	c.observe(model, "vision", start, err)
	if err != nil {
		return "", parseAPIError("vision", err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision response has no choices: %w", domain.ErrLLMProviderError)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
