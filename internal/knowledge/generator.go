package knowledge

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/rag-service/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Generator 定义生成模型接口
type Generator interface {
	Generate(ctx context.Context, messages []ChatMessage) (string, error)
	Ready() bool
}

// NoopGenerator 默认占位实现
type NoopGenerator struct{}

func (n *NoopGenerator) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	return "", apperrors.NewProvider("generation provider not configured")
}

func (n *NoopGenerator) Ready() bool {
	return false
}

// OpenAIGenerator 使用OpenAI Chat Completion API
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIGenerator 创建OpenAI生成器，apiKey为空时退化为NoopGenerator
func NewOpenAIGenerator(apiKey, model, baseURL string, maxTokens int, temperature float64, timeout time.Duration) Generator {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopGenerator{}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", apperrors.NewEmptyInput("no messages to generate from")
	}
	if g.client == nil {
		return "", apperrors.NewProvider("openai client not initialized")
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: chatMessages,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}
	if g.temperature > 0 {
		req.Temperature = float32(g.temperature)
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apperrors.NewProvider("chat completion failed").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewProvider("no response from generation model")
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) Ready() bool {
	return g.client != nil
}
