package knowledge

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/aihub/rag-service/internal/errors"
	"go.uber.org/zap"
)

const defaultTopK = 4

// VectorIndex 进程内向量索引，暴力余弦相似度检索。
// 实例由启动流程构造并注入，不做包级全局状态。
// 写入前向量统一做L2归一化，检索时点积即余弦相似度。
type VectorIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	logger   *zap.Logger
	entries  []VectorEntry
	dims     int
}

// NewVectorIndex 创建向量索引
func NewVectorIndex(embedder Embedder, log *zap.Logger) *VectorIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &VectorIndex{
		embedder: embedder,
		logger:   log,
	}
}

// Add 向量化并写入一批chunk，返回成功写入的条数。
// 单个chunk向量化失败只跳过并记录，不影响批次其余部分；
// 请求取消则立即中止，已写入的条目保留。
func (ix *VectorIndex) Add(ctx context.Context, chunks []DocumentChunk) (int, error) {
	var pending []VectorEntry

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			ix.flush(pending)
			return len(pending), err
		}

		vector, err := ix.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				ix.flush(pending)
				return len(pending), err
			}
			ix.logger.Warn("skipping chunk, embedding failed",
				zap.String("source_document_id", chunk.SourceDocumentID),
				zap.Int("sequence_index", chunk.SequenceIndex),
				zap.Error(err))
			continue
		}

		normalize(vector)
		pending = append(pending, VectorEntry{Chunk: chunk, Vector: vector})
	}

	ix.flush(pending)
	return len(pending), nil
}

// flush 在写锁内追加完整构造好的条目，保证检索侧的原子可见性
func (ix *VectorIndex) flush(entries []VectorEntry) {
	if len(entries) == 0 {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, entry := range entries {
		if ix.dims == 0 {
			ix.dims = len(entry.Vector)
		}
		if len(entry.Vector) != ix.dims {
			// 同一索引内不混用不同维度的向量
			ix.logger.Warn("skipping entry, vector dimension mismatch",
				zap.Int("expected", ix.dims),
				zap.Int("got", len(entry.Vector)),
				zap.String("source_document_id", entry.Chunk.SourceDocumentID))
			continue
		}
		ix.entries = append(ix.entries, entry)
	}
}

// Search 返回与查询最相似的k个chunk
func (ix *VectorIndex) Search(ctx context.Context, query string, k int) ([]DocumentChunk, error) {
	scored, err := ix.SearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]DocumentChunk, len(scored))
	for i, sc := range scored {
		chunks[i] = sc.Chunk
	}
	return chunks, nil
}

// SearchWithScore 返回与查询最相似的k个chunk及其余弦得分，按得分降序；
// 得分相同时先入库的排前。索引为空时返回EmptyIndex错误。
func (ix *VectorIndex) SearchWithScore(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewEmptyInput("query is empty")
	}
	if k <= 0 {
		k = defaultTopK
	}
	if ix.IsEmpty() {
		return nil, apperrors.NewEmptyIndex()
	}

	queryVector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	normalize(queryVector)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// 并发Clear后可能已空，持锁后复查
	if len(ix.entries) == 0 {
		return nil, apperrors.NewEmptyIndex()
	}

	scored := make([]ScoredChunk, len(ix.entries))
	for i, entry := range ix.entries {
		scored[i] = ScoredChunk{
			Chunk: entry.Chunk,
			Score: dot(entry.Vector, queryVector),
		}
	}

	// 稳定排序保证同分时先入库者优先
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// IsEmpty O(1)判空，供调度层决定是否具备检索条件
func (ix *VectorIndex) IsEmpty() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries) == 0
}

// Len 返回当前条目数
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Clear 清空索引，仅用于显式重置流程
func (ix *VectorIndex) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
	ix.dims = 0
}

// normalize 原地L2归一化，零向量保持不变
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// dot 点积，长度取两者较小值
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
