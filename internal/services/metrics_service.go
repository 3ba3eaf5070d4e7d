package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 查询路径标签值
const (
	QueryPathVector  = "vector"
	QueryPathGeneral = "general"
)

// Metrics RAG子系统的Prometheus指标集合
type Metrics struct {
	DocumentsIngested prometheus.Counter
	ChunksIndexed     prometheus.Counter
	ChunksSkipped     prometheus.Counter
	Queries           *prometheus.CounterVec
	VectorFallbacks   prometheus.Counter
	QueryDuration     prometheus.Histogram
}

// NewMetrics 注册并返回指标集合。reg为nil时使用独立registry（测试场景）
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		DocumentsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_documents_ingested_total",
			Help: "Total number of documents processed by ingestion.",
		}),
		ChunksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_indexed_total",
			Help: "Total number of chunks added to the vector index.",
		}),
		ChunksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_skipped_total",
			Help: "Total number of chunks skipped due to embedding failures.",
		}),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_queries_total",
			Help: "Total number of queries answered, by route path.",
		}, []string{"path"}),
		VectorFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_vector_fallbacks_total",
			Help: "Total number of vector-path failures that fell back to general conversation.",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_query_duration_seconds",
			Help:    "Latency of query handling including model calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
