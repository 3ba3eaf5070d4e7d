package services

import (
	"context"
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/aihub/rag-service/internal/errors"
	"github.com/aihub/rag-service/internal/kafka"
	"github.com/aihub/rag-service/internal/knowledge"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultVectorHistoryTurns  = 6
	defaultGeneralHistoryTurns = 8

	vectorSystemPrompt = "You are a helpful assistant. Answer the question using the provided context " +
		"from the knowledge base. If the context does not contain the answer, say so.\n\nContext:\n"

	generalSystemPrompt = "You are a helpful assistant. If you do not know the answer, " +
		"say that you do not know instead of making something up."
)

// RAGService 检索增强问答调度服务。
// 每次查询重新走 路由决策 -> 生成 -> 记录轮次 的流程，自身无持久状态。
type RAGService struct {
	index     *knowledge.VectorIndex
	chunker   *knowledge.Chunker
	sessions  *SessionMemoryStore
	generator knowledge.Generator
	metrics   *Metrics
	audit     *kafka.Producer // 可选，nil时跳过
	logger    *zap.Logger

	topK                int
	vectorHistoryTurns  int
	generalHistoryTurns int
}

// RAGOptions 调度参数
type RAGOptions struct {
	TopK                int
	VectorHistoryTurns  int
	GeneralHistoryTurns int
}

// NewRAGService 创建调度服务。metrics为nil时使用独立registry，audit可为nil
func NewRAGService(
	index *knowledge.VectorIndex,
	chunker *knowledge.Chunker,
	sessions *SessionMemoryStore,
	generator knowledge.Generator,
	metrics *Metrics,
	audit *kafka.Producer,
	opts RAGOptions,
	log *zap.Logger,
) *RAGService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.VectorHistoryTurns <= 0 {
		opts.VectorHistoryTurns = defaultVectorHistoryTurns
	}
	if opts.GeneralHistoryTurns <= 0 {
		opts.GeneralHistoryTurns = defaultGeneralHistoryTurns
	}
	return &RAGService{
		index:               index,
		chunker:             chunker,
		sessions:            sessions,
		generator:           generator,
		metrics:             metrics,
		audit:               audit,
		logger:              log,
		topK:                opts.TopK,
		vectorHistoryTurns:  opts.VectorHistoryTurns,
		generalHistoryTurns: opts.GeneralHistoryTurns,
	}
}

// IngestDocument 入库请求中的单个文档，text与base64_content二选一
type IngestDocument struct {
	ID            string                 `json:"id"`
	Text          string                 `json:"text"`
	Base64Content string                 `json:"base64_content"`
	Filename      string                 `json:"filename"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// IngestResult 入库结果
type IngestResult struct {
	DocumentsProcessed int `json:"documents_processed"`
	ChunksAdded        int `json:"chunks_added"`
}

// Ingest 文档入库：解码、切块、向量化、写入索引。
// 单个文档失败跳过不影响批次，请求取消立即返回已完成部分。
func (s *RAGService) Ingest(ctx context.Context, documents []IngestDocument) (*IngestResult, error) {
	if len(documents) == 0 {
		return nil, apperrors.NewValidation("no documents to ingest")
	}

	result := &IngestResult{}
	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		text, err := s.documentText(doc)
		if err != nil {
			s.logger.Warn("skipping document",
				zap.String("document_id", doc.ID),
				zap.String("filename", doc.Filename),
				zap.Error(err))
			continue
		}

		sourceID := doc.ID
		if sourceID == "" {
			sourceID = uuid.NewString()
		}
		metadata := doc.Metadata
		if doc.Filename != "" {
			if metadata == nil {
				metadata = map[string]interface{}{}
			}
			metadata["filename"] = doc.Filename
		}

		chunks, err := s.chunker.Split(text, sourceID, metadata)
		if err != nil {
			s.logger.Warn("skipping document, chunking failed",
				zap.String("document_id", sourceID),
				zap.Error(err))
			continue
		}

		added, err := s.index.Add(ctx, chunks)
		result.ChunksAdded += added
		s.metrics.ChunksIndexed.Add(float64(added))
		s.metrics.ChunksSkipped.Add(float64(len(chunks) - added))
		if err != nil {
			// Add只在请求取消时返回错误
			return result, err
		}

		result.DocumentsProcessed++
		s.metrics.DocumentsIngested.Inc()
	}

	s.logger.Info("ingestion finished",
		zap.Int("documents_processed", result.DocumentsProcessed),
		zap.Int("chunks_added", result.ChunksAdded),
		zap.Int("index_size", s.index.Len()))

	return result, nil
}

// documentText 取出文档的UTF-8文本，base64负载解码后校验编码
func (s *RAGService) documentText(doc IngestDocument) (string, error) {
	if strings.TrimSpace(doc.Text) != "" {
		return doc.Text, nil
	}
	if doc.Base64Content == "" {
		return "", apperrors.NewEmptyInput("document has no content")
	}

	raw, err := base64.StdEncoding.DecodeString(doc.Base64Content)
	if err != nil {
		return "", apperrors.NewValidation("invalid base64 content").WithCause(err)
	}
	if !utf8.Valid(raw) {
		return "", apperrors.NewValidation("decoded content is not valid UTF-8 text")
	}
	return string(raw), nil
}

// QueryRequest 查询请求。
// ConversationHistory可选，仅在服务端尚无该会话记录时用于seed历史。
type QueryRequest struct {
	Question            string        `json:"question"`
	SessionID           string        `json:"session_id"`
	UseVectorStore      bool          `json:"use_vector_store"`
	ConversationHistory []SessionTurn `json:"conversation_history,omitempty"`
}

// Source 向量路径返回的引用来源
type Source struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// QuerySessionStats 响应中附带的会话统计
type QuerySessionStats struct {
	MessageCount int `json:"message_count"`
}

// QueryResponse 查询响应，总是标明实际使用的回答路径
type QueryResponse struct {
	Response        string            `json:"response"`
	Sources         []Source          `json:"sources"`
	UsedVectorStore bool              `json:"used_vector_store"`
	SessionStats    QuerySessionStats `json:"session_stats"`
}

// vectorAnswer 向量路径的显式结果，失败由error承载并驱动回退
type vectorAnswer struct {
	answer  string
	sources []Source
}

// Query 回答一个问题。
// 只有调用方请求检索且索引非空时走向量路径；向量路径的任何失败都
// 降级为通用对话路径，仅通用路径的生成失败才作为终态错误返回。
func (s *RAGService) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperrors.NewValidation("question is empty")
	}

	// 客户端携带的历史仅在本地没有该会话时生效
	if len(req.ConversationHistory) > 0 && !s.sessions.Stats(req.SessionID).Exists {
		for _, turn := range req.ConversationHistory {
			s.sessions.Append(req.SessionID, turn.Question, turn.Answer)
		}
	}

	start := time.Now()
	var (
		answer     string
		sources    []Source
		usedVector bool
	)

	if req.UseVectorStore && !s.index.IsEmpty() {
		va, err := s.answerFromDocuments(ctx, question, req.SessionID)
		if err != nil {
			s.logger.Warn("vector path failed, falling back to general conversation",
				zap.String("session_id", req.SessionID),
				zap.Error(err))
			s.metrics.VectorFallbacks.Inc()
		} else {
			answer = va.answer
			sources = va.sources
			usedVector = true
		}
	}

	if !usedVector {
		generalAnswer, err := s.answerFromConversation(ctx, question, req.SessionID)
		if err != nil {
			// 通用路径之后没有进一步的回退
			return nil, apperrors.NewGenerationUnavailable("generation model unavailable, please retry later").WithCause(err)
		}
		answer = generalAnswer
	}

	// 被取消的请求不落会话记录
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.sessions.Append(req.SessionID, question, answer)

	path := QueryPathGeneral
	if usedVector {
		path = QueryPathVector
	}
	s.metrics.Queries.WithLabelValues(path).Inc()
	s.metrics.QueryDuration.Observe(time.Since(start).Seconds())

	s.publishTurn(req.SessionID, question, answer, usedVector, len(sources))

	stats := s.sessions.Stats(req.SessionID)
	return &QueryResponse{
		Response:        answer,
		Sources:         sources,
		UsedVectorStore: usedVector,
		SessionStats:    QuerySessionStats{MessageCount: stats.MessageCount},
	}, nil
}

// answerFromDocuments 向量路径：检索、拼接上下文、调用生成模型
func (s *RAGService) answerFromDocuments(ctx context.Context, question, sessionID string) (*vectorAnswer, error) {
	chunks, err := s.index.Search(ctx, question, s.topK)
	if err != nil {
		return nil, err
	}

	var contextText strings.Builder
	sources := make([]Source, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(chunk.Text)
		sources = append(sources, Source{
			Content:  chunk.Text,
			Metadata: chunk.Metadata,
		})
	}

	messages := []knowledge.ChatMessage{
		{Role: knowledge.RoleSystem, Content: vectorSystemPrompt + contextText.String()},
	}
	messages = appendHistory(messages, s.sessions.Recent(sessionID, s.vectorHistoryTurns))
	messages = append(messages, knowledge.ChatMessage{Role: knowledge.RoleUser, Content: question})

	answer, err := s.generator.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	return &vectorAnswer{answer: answer, sources: sources}, nil
}

// answerFromConversation 通用对话路径：仅基于会话历史回答
func (s *RAGService) answerFromConversation(ctx context.Context, question, sessionID string) (string, error) {
	messages := []knowledge.ChatMessage{
		{Role: knowledge.RoleSystem, Content: generalSystemPrompt},
	}
	messages = appendHistory(messages, s.sessions.Recent(sessionID, s.generalHistoryTurns))
	messages = append(messages, knowledge.ChatMessage{Role: knowledge.RoleUser, Content: question})

	return s.generator.Generate(ctx, messages)
}

// appendHistory 将历史轮次展开为交替的对话消息
func appendHistory(messages []knowledge.ChatMessage, turns []SessionTurn) []knowledge.ChatMessage {
	for _, turn := range turns {
		messages = append(messages,
			knowledge.ChatMessage{Role: knowledge.RoleUser, Content: turn.Question},
			knowledge.ChatMessage{Role: knowledge.RoleAssistant, Content: turn.Answer},
		)
	}
	return messages
}

// publishTurn 异步发送轮次到审计主题，失败只记录日志
func (s *RAGService) publishTurn(sessionID, question, answer string, usedVector bool, sourceCount int) {
	if s.audit == nil {
		return
	}
	go func() {
		err := s.audit.SendTurn(&kafka.TurnMessage{
			SessionID:       sessionID,
			Question:        question,
			Answer:          answer,
			UsedVectorStore: usedVector,
			SourceCount:     sourceCount,
			Timestamp:       time.Now(),
		})
		if err != nil {
			s.logger.Error("failed to send session turn to Kafka",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}()
}

// ClearMemory 清除指定会话的记忆
func (s *RAGService) ClearMemory(sessionID string) bool {
	return s.sessions.Clear(sessionID)
}

// MemoryStats 查询会话统计
func (s *RAGService) MemoryStats(sessionID string) SessionStats {
	return s.sessions.Stats(sessionID)
}

// ClearIndex 清空向量索引（显式重置流程）
func (s *RAGService) ClearIndex() {
	s.index.Clear()
	s.logger.Info("vector index cleared")
}
