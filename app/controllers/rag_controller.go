package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/aihub/rag-service/internal/services"
	"github.com/go-playground/validator/v10"
)

// ragService 由bootstrap注入。Beego每个请求都会反射构造新的controller实例，
// 因此服务依赖放在包级变量而不是controller字段上。
var ragService *services.RAGService

var validate = validator.New()

// SetRAGService 注入调度服务，必须在路由注册前调用
func SetRAGService(svc *services.RAGService) {
	ragService = svc
}

// RAGController 检索增强问答控制器
type RAGController struct {
	BaseController
}

// ingestRequest 文档入库请求体
type ingestRequest struct {
	Documents []services.IngestDocument `json:"documents" validate:"required,min=1"`
}

// queryRequest 查询请求体
type queryRequest struct {
	Question            string                 `json:"question" validate:"required"`
	SessionID           string                 `json:"session_id" validate:"required"`
	UseVectorStore      bool                   `json:"use_vector_store"`
	ConversationHistory []services.SessionTurn `json:"conversation_history,omitempty"`
}

// Ingest 上传文档并写入向量索引
func (c *RAGController) Ingest() {
	var req ingestRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求体格式错误")
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, "documents不能为空")
		return
	}

	result, err := ragService.Ingest(c.Ctx.Request.Context(), req.Documents)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(result)
}

// Query 回答问题
func (c *RAGController) Query() {
	var req queryRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求体格式错误")
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, "question与session_id不能为空")
		return
	}

	resp, err := ragService.Query(c.Ctx.Request.Context(), services.QueryRequest{
		Question:            req.Question,
		SessionID:           req.SessionID,
		UseVectorStore:      req.UseVectorStore,
		ConversationHistory: req.ConversationHistory,
	})
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(resp)
}

// ClearMemory 清除指定会话的记忆
func (c *RAGController) ClearMemory() {
	sessionID := c.GetString(":session_id")
	if sessionID == "" {
		c.JSONError(http.StatusBadRequest, "缺少session_id")
		return
	}

	cleared := ragService.ClearMemory(sessionID)
	c.JSONSuccess(map[string]interface{}{
		"session_id": sessionID,
		"cleared":    cleared,
	})
}

// MemoryStats 查询会话统计信息
func (c *RAGController) MemoryStats() {
	sessionID := c.GetString(":session_id")
	if sessionID == "" {
		c.JSONError(http.StatusBadRequest, "缺少session_id")
		return
	}

	c.JSONSuccess(ragService.MemoryStats(sessionID))
}

// ClearIndex 清空向量索引
func (c *RAGController) ClearIndex() {
	ragService.ClearIndex()
	c.JSONSuccess(map[string]interface{}{
		"cleared": true,
	})
}
