package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "knowledgeops"

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			EmbedderMode,
			QueriesTotal,
			DegradedStagesTotal,
			QueryConfidence,
			QueryDuration,
			LLMRequestsTotal,
			LLMRequestDuration,
			ApprovalsResolvedTotal,
			ApprovalsCreatedTotal,
			FeedbackIndexFailuresTotal,
			ChunksIngestedTotal,
			DocumentsIngestedTotal,
		)
	})
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
