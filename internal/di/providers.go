package di

import (
	"fmt"

	"github.com/aihub/rag-service/internal/config"
	"github.com/aihub/rag-service/internal/dashscope"
	"github.com/aihub/rag-service/internal/database"
	"github.com/aihub/rag-service/internal/kafka"
	"github.com/aihub/rag-service/internal/knowledge"
	"github.com/aihub/rag-service/internal/logger"
	"github.com/aihub/rag-service/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	providers := []interface{}{
		provideConfig,
		provideLogger,
		provideRedis,
		provideDashScope,
		provideEmbedder,
		provideGenerator,
		provideChunker,
		provideVectorIndex,
		provideSessionStore,
		provideMetrics,
		provideKafkaProducer,
		provideRAGService,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

func provideConfig() (*config.Config, error) {
	cfg := config.GetAppConfig()
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg, nil
}

func provideLogger() *zap.Logger {
	return logger.GetLogger()
}

// provideRedis 向量缓存未启用或连不上时返回nil，调用方降级
func provideRedis(cfg *config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Embedding.Cache.Enabled {
		return nil
	}
	client, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		return nil
	}
	log.Info("Redis connected, embedding cache enabled")
	return client
}

// provideDashScope 仅当某个provider选择dashscope时才创建，可能为nil
func provideDashScope(cfg *config.Config) *dashscope.Service {
	if cfg.Embedding.Provider == "dashscope" {
		return dashscope.NewService(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Timeout)
	}
	if cfg.Generation.Provider == "dashscope" {
		return dashscope.NewService(cfg.Generation.APIKey, cfg.Generation.BaseURL, cfg.Generation.Timeout)
	}
	return nil
}

// provideEmbedder 按配置选择provider，并套上重试与可选的Redis缓存
func provideEmbedder(cfg *config.Config, ds *dashscope.Service, rdb *redis.Client) knowledge.Embedder {
	var base knowledge.Embedder
	switch cfg.Embedding.Provider {
	case "dashscope":
		base = knowledge.NewDashScopeEmbedder(ds, cfg.Embedding.Model)
	default:
		base = knowledge.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Timeout)
	}

	var embedder knowledge.Embedder = knowledge.NewRetryEmbedder(base, cfg.Embedding.RetryAttempts, cfg.Embedding.RetryBaseDelay)
	if rdb != nil {
		embedder = knowledge.NewCachedEmbedder(embedder, rdb, cfg.Embedding.Model, cfg.Embedding.Cache.TTL)
	}
	return embedder
}

func provideGenerator(cfg *config.Config, ds *dashscope.Service) knowledge.Generator {
	switch cfg.Generation.Provider {
	case "dashscope":
		return knowledge.NewDashScopeGenerator(ds, cfg.Generation.Model, cfg.Generation.MaxTokens, cfg.Generation.Temperature)
	default:
		return knowledge.NewOpenAIGenerator(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.BaseURL,
			cfg.Generation.MaxTokens, cfg.Generation.Temperature, cfg.Generation.Timeout)
	}
}

func provideChunker(cfg *config.Config) *knowledge.Chunker {
	return knowledge.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
}

func provideVectorIndex(embedder knowledge.Embedder, log *zap.Logger) *knowledge.VectorIndex {
	return knowledge.NewVectorIndex(embedder, log)
}

func provideSessionStore(cfg *config.Config, log *zap.Logger) *services.SessionMemoryStore {
	return services.NewSessionMemoryStore(cfg.Session.Timeout, cfg.Session.SweepInterval, log)
}

func provideMetrics(cfg *config.Config) *services.Metrics {
	if !cfg.Metrics.Enabled {
		// 独立registry，不暴露
		return services.NewMetrics(nil)
	}
	return services.NewMetrics(prometheus.DefaultRegisterer)
}

// provideKafkaProducer 审计未启用时返回nil
func provideKafkaProducer(cfg *config.Config, log *zap.Logger) *kafka.Producer {
	if !cfg.Kafka.Enabled {
		return nil
	}
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		log.Warn("Kafka unavailable, session turn audit disabled", zap.Error(err))
		return nil
	}
	return producer
}

func provideRAGService(
	index *knowledge.VectorIndex,
	chunker *knowledge.Chunker,
	sessions *services.SessionMemoryStore,
	generator knowledge.Generator,
	metrics *services.Metrics,
	audit *kafka.Producer,
	cfg *config.Config,
	log *zap.Logger,
) *services.RAGService {
	return services.NewRAGService(index, chunker, sessions, generator, metrics, audit, services.RAGOptions{
		TopK:                cfg.RAG.TopK,
		VectorHistoryTurns:  cfg.RAG.VectorHistoryTurns,
		GeneralHistoryTurns: cfg.RAG.GeneralHistoryTurns,
	}, log)
}
