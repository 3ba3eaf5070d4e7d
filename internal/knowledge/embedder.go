package knowledge

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/rag-service/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder 定义文本向量化接口。
// 维度信息只在这里暴露，其余组件将向量视为不透明的定长数组。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 默认占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, apperrors.NewProvider("embedding provider not configured")
}

func (n *NoopEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, apperrors.NewProvider("embedding provider not configured")
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器。
// apiKey为空时退化为NoopEmbedder；baseURL可指向任意OpenAI兼容端点。
func NewOpenAIEmbedder(apiKey, model, baseURL string, timeout time.Duration) Embedder {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	dims, ok := embeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dims,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany 批量向量化，返回结果与输入顺序一致
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperrors.NewEmptyInput("no texts to embed")
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, apperrors.NewEmptyInput("text is empty")
		}
	}
	if e.client == nil {
		return nil, apperrors.NewProvider("openai client not initialized")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, apperrors.NewProvider("embedding request failed").WithCause(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewProvider("embedding response incomplete")
	}

	// 按Index回填，保证与输入顺序一致
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, apperrors.NewProvider("embedding response index out of range")
		}
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		vectors[data.Index] = vec
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
