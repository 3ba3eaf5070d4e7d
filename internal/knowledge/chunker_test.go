package knowledge

import (
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/aihub/rag-service/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker(t *testing.T) {
	t.Run("默认值", func(t *testing.T) {
		c := NewChunker(0, -1)
		assert.Equal(t, 1000, c.chunkSize)
		assert.Equal(t, 0, c.chunkOverlap)
	})

	t.Run("overlap超过chunkSize时收紧", func(t *testing.T) {
		c := NewChunker(100, 100)
		assert.Equal(t, 100, c.chunkSize)
		assert.Equal(t, 25, c.chunkOverlap)
	})
}

func TestChunkerSplitEmptyText(t *testing.T) {
	c := NewChunker(100, 10)

	_, err := c.Split("", "doc-1", nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindEmptyInput))

	_, err = c.Split("   \n\t ", "doc-1", nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindEmptyInput))
}

func TestChunkerSplitShortText(t *testing.T) {
	c := NewChunker(100, 10)

	chunks, err := c.Split("hello world", "doc-1", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, "doc-1", chunks[0].SourceDocumentID)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestChunkerSplitSentenceBoundary(t *testing.T) {
	c := NewChunker(4, 1)

	chunks, err := c.Split("A. B. C.", "doc-1", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "A.", chunks[0].Text)
	assert.Equal(t, ". B.", chunks[1].Text)
	assert.Equal(t, ". C.", chunks[2].Text)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.SequenceIndex)
	}
}

func TestChunkerSplitParagraphBoundary(t *testing.T) {
	c := NewChunker(12, 0)

	chunks, err := c.Split("para one.\n\npara two.", "doc-1", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "para one.\n\n", chunks[0].Text)
	assert.Equal(t, "para two.", chunks[1].Text)
}

func TestChunkerSplitHardCut(t *testing.T) {
	// 无任何分隔符时在窗口末尾硬切，相邻块共享overlap个字符
	c := NewChunker(4, 2)

	chunks, err := c.Split("abcdefghij", "doc-1", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"},
		chunkTexts(chunks))

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		assert.Equal(t, prev[len(prev)-2:], chunks[i].Text[:2])
	}
}

func TestChunkerSplitCoversFullText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "This is sentence number %d in the source document. ", i)
	}
	text := b.String()
	c := NewChunker(100, 20)

	chunks, err := c.Split(text, "doc-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// 首块从文本开头出发，末块到达文本结尾，每块不超过目标大小
	assert.True(t, strings.HasPrefix(text, chunks[0].Text))
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1].Text))
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 100)
		assert.NotEmpty(t, chunk.Text)
	}

	// 相邻块首尾相接或部分重叠，拼接后不丢内容
	reconstructed := chunks[0].Text
	for i := 1; i < len(chunks); i++ {
		cur := chunks[i].Text
		joined := false
		for ov := len(cur); ov >= 0; ov-- {
			if strings.HasSuffix(reconstructed, cur[:ov]) {
				reconstructed += cur[ov:]
				joined = true
				break
			}
		}
		assert.True(t, joined)
	}
	assert.Equal(t, text, reconstructed)
}

func TestChunkerSplitUnicode(t *testing.T) {
	c := NewChunker(6, 0)

	chunks, err := c.Split("你好世界。今天天气好。", "doc-1", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "你好世界。", chunks[0].Text)
	assert.Equal(t, "今天天气好。", chunks[1].Text)
}

func TestChunkerSplitMetadataIsolation(t *testing.T) {
	c := NewChunker(4, 0)
	metadata := map[string]interface{}{"filename": "a.txt"}

	chunks, err := c.Split("abcdefgh", "doc-1", metadata)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// 每个chunk持有独立副本，互不影响
	chunks[0].Metadata["filename"] = "changed"
	assert.Equal(t, "a.txt", chunks[1].Metadata["filename"])
	assert.Equal(t, "a.txt", metadata["filename"])
}

func chunkTexts(chunks []DocumentChunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
