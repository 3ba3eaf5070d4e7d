package knowledge

import (
	"context"
	"time"

	apperrors "github.com/aihub/rag-service/internal/errors"
	"github.com/aihub/rag-service/internal/logger"
	"go.uber.org/zap"
)

// RetryEmbedder 为底层Embedder补充有界指数退避重试。
// 只重试Provider类错误，空输入等校验错误直接返回。
type RetryEmbedder struct {
	inner     Embedder
	attempts  int
	baseDelay time.Duration
}

// NewRetryEmbedder 创建重试装饰器，attempts默认3次，baseDelay默认500ms
func NewRetryEmbedder(inner Embedder, attempts int, baseDelay time.Duration) *RetryEmbedder {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &RetryEmbedder{
		inner:     inner,
		attempts:  attempts,
		baseDelay: baseDelay,
	}
}

func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.retry(ctx, func() error {
		var innerErr error
		vec, innerErr = r.inner.Embed(ctx, text)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (r *RetryEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := r.retry(ctx, func() error {
		var innerErr error
		vectors, innerErr = r.inner.EmbedMany(ctx, texts)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (r *RetryEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

func (r *RetryEmbedder) Ready() bool {
	return r.inner.Ready()
}

// retry 执行fn，Provider错误按 baseDelay * 2^n 退避重试
func (r *RetryEmbedder) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !apperrors.IsKind(lastErr, apperrors.KindProvider) {
			return lastErr
		}
		if attempt == r.attempts {
			break
		}

		logger.Warn("embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return apperrors.NewProvider("embedding cancelled").WithCause(ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
