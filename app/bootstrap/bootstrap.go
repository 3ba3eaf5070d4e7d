package bootstrap

import (
	"log"

	"github.com/aihub/rag-service/app/controllers"
	"github.com/aihub/rag-service/internal/config"
	"github.com/aihub/rag-service/internal/di"
	"github.com/aihub/rag-service/internal/kafka"
	"github.com/aihub/rag-service/internal/logger"
	"github.com/aihub/rag-service/internal/services"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	RAGService *services.RAGService

	cleanupTasks []func() error
}

// Init bootstraps configuration, logger and the dependency-injected service
// graph required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	app := &App{}
	err := di.Invoke(func(
		svc *services.RAGService,
		sessions *services.SessionMemoryStore,
		rdb *redis.Client,
		audit *kafka.Producer,
	) {
		app.RAGService = svc

		// 启动会话清扫任务，关停时按注册逆序清理
		sessions.Start()
		app.addCleanup(func() error {
			sessions.Stop()
			return nil
		})
		if rdb != nil {
			app.addCleanup(rdb.Close)
		}
		if audit != nil {
			app.addCleanup(audit.Close)
		}
	})
	if err != nil {
		return nil, err
	}

	controllers.SetRAGService(app.RAGService)

	app.addCleanup(func() error {
		logger.Sync()
		return nil
	})

	logger.Info("application bootstrapped",
		zap.String("env", config.AppConfig.Server.Env),
		zap.String("embedding_provider", config.AppConfig.Embedding.Provider),
		zap.String("generation_provider", config.AppConfig.Generation.Provider))

	return app, nil
}

func (a *App) addCleanup(task func() error) {
	a.cleanupTasks = append(a.cleanupTasks, task)
}

// Shutdown runs cleanup tasks in reverse registration order.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Error("cleanup task failed", zap.Error(err))
		}
	}
}
