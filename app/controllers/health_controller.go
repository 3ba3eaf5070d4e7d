package controllers

import "time"

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

// Health 存活检查
func (c *HealthController) Health() {
	c.JSONSuccess(map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
