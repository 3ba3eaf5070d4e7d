package knowledge

import (
	"strings"

	apperrors "github.com/aihub/rag-service/internal/errors"
	"github.com/google/uuid"
)

// Chunker 文本分块器，使用级联分隔符在目标大小附近寻找切分点
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// 句末标点集合，覆盖中英文
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// NewChunker 创建分块器。overlap必须严格小于chunkSize，否则按chunkSize/4收紧
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

// Split 将文档文本切分为带重叠的块序列。
// 每个窗口内按 段落换行 > 行换行 > 句末标点 > 空格 的顺序选取离窗口末尾
// 最近的切分点，找不到时在窗口末尾硬切；相邻块共享chunkOverlap个字符。
func (c *Chunker) Split(text, sourceID string, metadata map[string]interface{}) ([]DocumentChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewEmptyInput("document text is empty")
	}

	runes := []rune(text)
	var chunks []DocumentChunk

	emit := func(start, end int) {
		chunks = append(chunks, DocumentChunk{
			ID:               uuid.NewString(),
			SourceDocumentID: sourceID,
			Text:             string(runes[start:end]),
			SequenceIndex:    len(chunks),
			Metadata:         cloneMetadata(metadata),
		})
	}

	start := 0
	for {
		end := start + c.chunkSize
		if end >= len(runes) {
			emit(start, len(runes))
			break
		}

		cut := c.findBoundary(runes, start, end)
		emit(start, cut)

		next := cut - c.chunkOverlap
		if next <= start {
			// 块太小无法承担重叠，直接前进保证终止
			next = cut
		}
		start = next
	}

	return chunks, nil
}

// findBoundary 在 runes[start:limit] 内按级联顺序寻找切分点，
// 返回值是新块的结束下标（不含）。没有任何分隔符时在limit处硬切。
func (c *Chunker) findBoundary(runes []rune, start, limit int) int {
	// 1. 段落边界
	for i := limit - 2; i >= start; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}
	// 2. 行边界
	for i := limit - 1; i >= start; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// 3. 句末标点
	for i := limit - 1; i >= start; i-- {
		if sentenceEnders[runes[i]] {
			return i + 1
		}
	}
	// 4. 空格
	for i := limit - 1; i >= start; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	// 5. 硬切
	return limit
}

func cloneMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	clone := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		clone[k] = v
	}
	return clone
}
