package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCachedEmbedderNilClient(t *testing.T) {
	inner := newStubEmbedder(nil)

	// 没有Redis客户端时不做任何包装
	embedder := NewCachedEmbedder(inner, nil, "text-embedding-3-small", time.Hour)
	assert.Same(t, Embedder(inner), embedder)
}

func TestCachedEmbedderKey(t *testing.T) {
	c := &CachedEmbedder{prefix: "embedding:text-embedding-3-small:"}

	key := c.key("hello")
	assert.Contains(t, key, "embedding:text-embedding-3-small:")
	// 同文本同键，不同文本不同键
	assert.Equal(t, key, c.key("hello"))
	assert.NotEqual(t, key, c.key("world"))
}
