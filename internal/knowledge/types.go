package knowledge

// DocumentChunk 文档切分后的检索单元，入库后由向量索引独占持有
type DocumentChunk struct {
	ID               string                 `json:"id"`
	SourceDocumentID string                 `json:"source_document_id"`
	Text             string                 `json:"text"`
	SequenceIndex    int                    `json:"sequence_index"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// VectorEntry 向量索引中的一条记录
type VectorEntry struct {
	Chunk  DocumentChunk
	Vector []float32
}

// ScoredChunk 带相似度得分的检索结果
type ScoredChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// ChatMessage 生成模型的对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
