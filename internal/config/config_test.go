package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadFresh 重置viper全局状态后加载配置，避免测试间相互影响
func loadFresh(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, LoadConfig())
	require.NotNil(t, AppConfig)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV", "OPENAI_API_KEY", "DASHSCOPE_API_KEY",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "GENERATION_PROVIDER", "GENERATION_MODEL",
		"EMBEDDING_CACHE_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_ENABLED",
		"METRICS_ENABLED", "SESSION_TIMEOUT", "SESSION_SWEEP_INTERVAL",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "REDIS_HOST", "REDIS_PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	loadFresh(t)

	assert.Equal(t, "8001", AppConfig.Server.Port)
	assert.Equal(t, 1000, AppConfig.RAG.ChunkSize)
	assert.Equal(t, 200, AppConfig.RAG.ChunkOverlap)
	assert.Equal(t, 4, AppConfig.RAG.TopK)
	assert.Equal(t, 6, AppConfig.RAG.VectorHistoryTurns)
	assert.Equal(t, 8, AppConfig.RAG.GeneralHistoryTurns)
	assert.Equal(t, 2*time.Hour, AppConfig.Session.Timeout)
	assert.Equal(t, 30*time.Minute, AppConfig.Session.SweepInterval)
	assert.Equal(t, "openai", AppConfig.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", AppConfig.Embedding.Model)
	assert.Equal(t, 3, AppConfig.Embedding.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, AppConfig.Embedding.RetryBaseDelay)
	assert.False(t, AppConfig.Embedding.Cache.Enabled)
	assert.Equal(t, "gpt-4o-mini", AppConfig.Generation.Model)
	assert.False(t, AppConfig.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, AppConfig.Kafka.Brokers)
	assert.True(t, AppConfig.Metrics.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("CHUNK_OVERLAP", "64")
	t.Setenv("SESSION_TIMEOUT", "15m")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("KAFKA_ENABLED", "true")
	loadFresh(t)

	assert.Equal(t, "9090", AppConfig.Server.Port)
	assert.Equal(t, 512, AppConfig.RAG.ChunkSize)
	assert.Equal(t, 64, AppConfig.RAG.ChunkOverlap)
	assert.Equal(t, 15*time.Minute, AppConfig.Session.Timeout)
	assert.Equal(t, "test-key", AppConfig.Embedding.APIKey)
	assert.Equal(t, "test-key", AppConfig.Generation.APIKey)
	assert.True(t, AppConfig.Kafka.Enabled)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, AppConfig.Kafka.Brokers)
}

func TestLoadConfigDashScopeKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "dashscope")
	t.Setenv("DASHSCOPE_API_KEY", "ds-key")
	loadFresh(t)

	// 仅对应provider的key被采用
	assert.Equal(t, "ds-key", AppConfig.Embedding.APIKey)
	assert.Empty(t, AppConfig.Generation.APIKey)
}

func TestLoadConfigInvalidChunkSizeIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("CHUNK_OVERLAP", "-5")
	loadFresh(t)

	assert.Equal(t, 1000, AppConfig.RAG.ChunkSize)
	assert.Equal(t, 200, AppConfig.RAG.ChunkOverlap)
}

func TestGetAppConfig(t *testing.T) {
	clearEnv(t)
	loadFresh(t)
	assert.Same(t, AppConfig, GetAppConfig())
}
