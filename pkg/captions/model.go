package captions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Model writes one short completion for a prompt.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type OpenAIModel struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
}

// NewOpenAIModel talks to any OpenAI-compatible endpoint. An empty baseURL
// means the OpenAI default.
func NewOpenAIModel(apiKey, baseURL, model string) *OpenAIModel {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIModel{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: 1.0,
		maxTokens:   60,
		timeout:     30 * time.Second,
	}
}

func (m *OpenAIModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(m.model),
		Messages:    messages,
		Temperature: openai.Float(m.temperature),
		MaxTokens:   openai.Int(m.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
