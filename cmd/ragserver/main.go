package main

import (
	"log"
	"strconv"

	"github.com/aihub/rag-service/app/bootstrap"
	"github.com/aihub/rag-service/app/router"
	"github.com/aihub/rag-service/internal/config"
	"github.com/aihub/rag-service/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	// 配置Beego全局设置
	web.BConfig.AppName = "RAG Service"
	web.BConfig.CopyRequestBody = true
	if p, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	}

	logger.Info("🚀 Starting RAG Service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
