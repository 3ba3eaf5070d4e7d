package router

import (
	"github.com/aihub/rag-service/app/controllers"
	"github.com/aihub/rag-service/internal/config"
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init 注册所有路由，必须在配置加载之后调用
func Init() {
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	ragController := &controllers.RAGController{}
	web.Router("/api/rag/documents", ragController, "post:Ingest")
	web.Router("/api/rag/query", ragController, "post:Query")
	web.Router("/api/rag/index/clear", ragController, "post:ClearIndex")
	web.Router("/api/rag/memory/:session_id", ragController, "get:MemoryStats;delete:ClearMemory")

	if config.AppConfig != nil && config.AppConfig.Metrics.Enabled {
		web.Handler("/metrics", promhttp.Handler())
	}
}
