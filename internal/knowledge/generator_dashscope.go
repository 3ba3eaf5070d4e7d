package knowledge

import (
	"context"

	"github.com/aihub/rag-service/internal/dashscope"
	apperrors "github.com/aihub/rag-service/internal/errors"
)

// DashScopeGenerator 使用阿里云DashScope聊天接口
type DashScopeGenerator struct {
	service     *dashscope.Service
	model       string
	maxTokens   int
	temperature float64
}

// NewDashScopeGenerator 创建DashScope生成器
func NewDashScopeGenerator(service *dashscope.Service, model string, maxTokens int, temperature float64) Generator {
	if service == nil || !service.Ready() {
		return &NoopGenerator{}
	}
	if model == "" {
		model = "qwen-turbo"
	}
	return &DashScopeGenerator{
		service:     service,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (g *DashScopeGenerator) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", apperrors.NewEmptyInput("no messages to generate from")
	}
	if g.service == nil || !g.service.Ready() {
		return "", apperrors.NewProvider("dashscope service not initialized")
	}

	chatMessages := make([]dashscope.ChatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = dashscope.ChatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := dashscope.ChatRequest{
		Model:    g.model,
		Messages: chatMessages,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = &g.maxTokens
	}
	if g.temperature > 0 {
		req.Temperature = &g.temperature
	}

	resp, err := g.service.ChatCompletion(ctx, req)
	if err != nil {
		return "", apperrors.NewProvider("chat completion failed").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewProvider("no response from generation model")
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *DashScopeGenerator) Ready() bool {
	return g.service != nil && g.service.Ready()
}
