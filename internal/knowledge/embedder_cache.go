package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/aihub/rag-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedEmbedder 用Redis缓存向量结果，键为模型名加文本SHA-256。
// 缓存故障只降级为直连底层Embedder，不影响主流程。
type CachedEmbedder struct {
	inner  Embedder
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedEmbedder 创建Redis缓存装饰器。client为nil时直接返回底层Embedder
func NewCachedEmbedder(inner Embedder, client *redis.Client, model string, ttl time.Duration) Embedder {
	if client == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		prefix: "embedding:" + model + ":",
		ttl:    ttl,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(ctx, text); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, text, vec)
	return vec, nil
}

// EmbedMany 批量向量化；命中部分走缓存，其余合并为一次底层调用
func (c *CachedEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.lookup(ctx, text); ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fetched, err := c.inner.EmbedMany(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range fetched {
			vectors[missIdx[j]] = vec
			c.store(ctx, missTexts[j], vec)
		}
	}
	return vectors, nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedEmbedder) Ready() bool {
	return c.inner.Ready()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, text string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.key(text)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("embedding cache get failed", zap.Error(err))
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		logger.Warn("embedding cache entry corrupted", zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) store(ctx context.Context, text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(text), data, c.ttl).Err(); err != nil {
		logger.Warn("embedding cache set failed", zap.Error(err))
	}
}
