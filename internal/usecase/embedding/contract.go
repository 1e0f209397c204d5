package embedding

import "github.com/kailas-cloud/knowledgeops/internal/domain"

// Backend is the embedder the service delegates to. It must support batching;
// domain.BatchFallback covers providers that do not.
type Backend interface {
	domain.Embedder
	domain.BatchEmbedder
}

// ModeReporter exposes which embedder is active (model or degraded).
type ModeReporter interface {
	Mode() Mode
}
