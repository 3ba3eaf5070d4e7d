package knowledge

import (
	"context"
	"strings"

	"github.com/aihub/rag-service/internal/dashscope"
	apperrors "github.com/aihub/rag-service/internal/errors"
)

// DashScopeEmbedder 使用阿里云DashScope Embedding API
type DashScopeEmbedder struct {
	service    *dashscope.Service
	model      string
	dimensions int
}

// 千问Embedding模型维度映射
var dashscopeEmbeddingDimensions = map[string]int{
	"text-embedding-v1": 1536,
	"text-embedding-v2": 1536,
	"text-embedding-v3": 1536, // 支持自定义维度
	"text-embedding-v4": 1536, // 支持自定义维度
}

// NewDashScopeEmbedder 创建DashScope嵌入向量生成器
func NewDashScopeEmbedder(service *dashscope.Service, model string) Embedder {
	if service == nil || !service.Ready() {
		return &NoopEmbedder{}
	}
	if model == "" {
		model = "text-embedding-v3"
	}

	dims, ok := dashscopeEmbeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &DashScopeEmbedder{
		service:    service,
		model:      model,
		dimensions: dims,
	}
}

func (e *DashScopeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany 批量向量化，返回结果与输入顺序一致
func (e *DashScopeEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperrors.NewEmptyInput("no texts to embed")
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, apperrors.NewEmptyInput("text is empty")
		}
	}
	if e.service == nil || !e.service.Ready() {
		return nil, apperrors.NewProvider("dashscope service not initialized")
	}

	req := dashscope.EmbeddingRequest{
		Model:          e.model,
		Input:          texts,
		EncodingFormat: "float",
	}
	// v3/v4模型支持指定维度
	if e.model == "text-embedding-v3" || e.model == "text-embedding-v4" {
		req.Dimensions = &e.dimensions
	}

	resp, err := e.service.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, apperrors.NewProvider("embedding request failed").WithCause(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewProvider("embedding response incomplete")
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, apperrors.NewProvider("embedding response index out of range")
		}
		// float64转float32
		vec := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vec[i] = float32(v)
		}
		vectors[data.Index] = vec
	}
	return vectors, nil
}

func (e *DashScopeEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *DashScopeEmbedder) Ready() bool {
	return e.service != nil && e.service.Ready()
}
