package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	RAG        RAGConfig
	Session    SessionConfig
	Embedding  EmbeddingConfig
	Generation GenerationConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// RAGConfig 检索增强问答核心参数
type RAGConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	VectorHistoryTurns  int
	GeneralHistoryTurns int
}

// SessionConfig 会话记忆参数
type SessionConfig struct {
	Timeout       time.Duration
	SweepInterval time.Duration
}

// EmbeddingConfig 向量化服务参数
type EmbeddingConfig struct {
	Provider       string // openai | dashscope
	Model          string
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Cache          EmbeddingCacheConfig
}

// EmbeddingCacheConfig Redis向量缓存参数
type EmbeddingCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// GenerationConfig 生成模型参数
type GenerationConfig struct {
	Provider    string // openai | dashscope
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	DB       int
	Password string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type MetricsConfig struct {
	Enabled bool
}

var AppConfig *Config

func LoadConfig() error {
	// 设置默认值
	viper.SetDefault("server.port", "8001")
	viper.SetDefault("server.env", "development")

	// RAG核心默认值
	viper.SetDefault("rag.chunk_size", 1000)
	viper.SetDefault("rag.chunk_overlap", 200)
	viper.SetDefault("rag.top_k", 4)
	viper.SetDefault("rag.vector_history_turns", 6)
	viper.SetDefault("rag.general_history_turns", 8)

	// 会话记忆默认值
	viper.SetDefault("session.timeout", "2h")
	viper.SetDefault("session.sweep_interval", "30m")

	// 向量化默认值
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.api_key", "")
	viper.SetDefault("embedding.base_url", "")
	viper.SetDefault("embedding.timeout", "60s")
	viper.SetDefault("embedding.retry_attempts", 3)
	viper.SetDefault("embedding.retry_base_delay", "500ms")
	viper.SetDefault("embedding.cache.enabled", false)
	viper.SetDefault("embedding.cache.ttl", "1h")

	// 生成模型默认值
	viper.SetDefault("generation.provider", "openai")
	viper.SetDefault("generation.model", "gpt-4o-mini")
	viper.SetDefault("generation.api_key", "")
	viper.SetDefault("generation.base_url", "")
	viper.SetDefault("generation.max_tokens", 2000)
	viper.SetDefault("generation.temperature", 0.7)
	viper.SetDefault("generation.timeout", "60s")

	// Redis默认值（仅用于向量缓存）
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.password", "")

	// Kafka默认值（会话轮次审计，默认关闭）
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "rag-session-turns")

	// 指标默认值
	viper.SetDefault("metrics.enabled", true)

	// 读取环境变量
	viper.SetEnvPrefix("RAGSVC")
	viper.AutomaticEnv()

	// 从环境变量读取
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if env := os.Getenv("ENV"); env != "" {
		viper.Set("server.env", env)
	}
	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		viper.Set("embedding.api_key", openaiKey)
		viper.Set("generation.api_key", openaiKey)
	}
	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		viper.Set("embedding.provider", provider)
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		viper.Set("embedding.model", model)
	}
	if provider := os.Getenv("GENERATION_PROVIDER"); provider != "" {
		viper.Set("generation.provider", provider)
	}
	if model := os.Getenv("GENERATION_MODEL"); model != "" {
		viper.Set("generation.model", model)
	}
	if dashscopeKey := os.Getenv("DASHSCOPE_API_KEY"); dashscopeKey != "" {
		if viper.GetString("embedding.provider") == "dashscope" {
			viper.Set("embedding.api_key", dashscopeKey)
		}
		if viper.GetString("generation.provider") == "dashscope" {
			viper.Set("generation.api_key", dashscopeKey)
		}
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		viper.Set("redis.host", redisHost)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		viper.Set("redis.port", redisPort)
	}
	if cacheEnabled := os.Getenv("EMBEDDING_CACHE_ENABLED"); cacheEnabled == "true" {
		viper.Set("embedding.cache.enabled", true)
	}
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		// 支持逗号分隔的broker列表
		brokers := strings.Split(kafkaBrokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		viper.Set("kafka.brokers", brokers)
	}
	if kafkaTopic := os.Getenv("KAFKA_TOPIC"); kafkaTopic != "" {
		viper.Set("kafka.topic", kafkaTopic)
	}
	if kafkaEnabled := os.Getenv("KAFKA_ENABLED"); kafkaEnabled == "true" {
		viper.Set("kafka.enabled", true)
	}
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled == "false" {
		viper.Set("metrics.enabled", false)
	}
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		viper.Set("session.timeout", timeout)
	}
	if interval := os.Getenv("SESSION_SWEEP_INTERVAL"); interval != "" {
		viper.Set("session.sweep_interval", interval)
	}
	if chunkSize := os.Getenv("CHUNK_SIZE"); chunkSize != "" {
		if n, err := strconv.Atoi(chunkSize); err == nil && n > 0 {
			viper.Set("rag.chunk_size", n)
		}
	}
	if overlap := os.Getenv("CHUNK_OVERLAP"); overlap != "" {
		if n, err := strconv.Atoi(overlap); err == nil && n >= 0 {
			viper.Set("rag.chunk_overlap", n)
		}
	}

	AppConfig = &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		RAG: RAGConfig{
			ChunkSize:           viper.GetInt("rag.chunk_size"),
			ChunkOverlap:        viper.GetInt("rag.chunk_overlap"),
			TopK:                viper.GetInt("rag.top_k"),
			VectorHistoryTurns:  viper.GetInt("rag.vector_history_turns"),
			GeneralHistoryTurns: viper.GetInt("rag.general_history_turns"),
		},
		Session: SessionConfig{
			Timeout:       viper.GetDuration("session.timeout"),
			SweepInterval: viper.GetDuration("session.sweep_interval"),
		},
		Embedding: EmbeddingConfig{
			Provider:       viper.GetString("embedding.provider"),
			Model:          viper.GetString("embedding.model"),
			APIKey:         viper.GetString("embedding.api_key"),
			BaseURL:        viper.GetString("embedding.base_url"),
			Timeout:        viper.GetDuration("embedding.timeout"),
			RetryAttempts:  viper.GetInt("embedding.retry_attempts"),
			RetryBaseDelay: viper.GetDuration("embedding.retry_base_delay"),
			Cache: EmbeddingCacheConfig{
				Enabled: viper.GetBool("embedding.cache.enabled"),
				TTL:     viper.GetDuration("embedding.cache.ttl"),
			},
		},
		Generation: GenerationConfig{
			Provider:    viper.GetString("generation.provider"),
			Model:       viper.GetString("generation.model"),
			APIKey:      viper.GetString("generation.api_key"),
			BaseURL:     viper.GetString("generation.base_url"),
			MaxTokens:   viper.GetInt("generation.max_tokens"),
			Temperature: viper.GetFloat64("generation.temperature"),
			Timeout:     viper.GetDuration("generation.timeout"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			DB:       viper.GetInt("redis.db"),
			Password: viper.GetString("redis.password"),
		},
		Kafka: KafkaConfig{
			Enabled: viper.GetBool("kafka.enabled"),
			Brokers: viper.GetStringSlice("kafka.brokers"),
			Topic:   viper.GetString("kafka.topic"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("metrics.enabled"),
		},
	}

	return nil
}

// GetAppConfig 获取全局配置实例
func GetAppConfig() *Config {
	return AppConfig
}
