package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

// Service is the asymmetric embedder of the RAG pipeline: queries and documents get different
// instruction prefixes, and every vector leaving the service is L2-normalised.
type Service struct {
	query      *domain.InstructionEmbedder
	document   *domain.InstructionEmbedder
	backend    Backend
	dimensions int
}

// New creates a Service. dimensions is checked against every returned vector (0 disables the check).
func New(backend Backend, queryInstruction, documentInstruction string, dimensions int) *Service {
	return &Service{
		query:      domain.NewInstructionEmbedder(backend, queryInstruction),
		document:   domain.NewInstructionEmbedder(backend, documentInstruction),
		backend:    backend,
		dimensions: dimensions,
	}
}

// Dimensions returns the configured vector dimension.
func (s *Service) Dimensions() int { return s.dimensions }

// Mode reports whether the real model or the degraded embedder is serving.
func (s *Service) Mode() Mode {
	if mr, ok := s.backend.(ModeReporter); ok {
		return mr.Mode()
	}
	return ModeModel
}

// EmbedQuery embeds a search query. Whitespace-only input yields a nil vector and no error.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	res, err := s.query.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := s.checkDim(res.Embedding); err != nil {
		return nil, err
	}
	return domain.Normalize(res.Embedding), nil
}

// EmbedDocuments embeds passages for indexing, one vector per text in input order.
// Empty input yields an empty result.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	res, err := s.document.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	for _, v := range res.Embeddings {
		if err := s.checkDim(v); err != nil {
			return nil, err
		}
		domain.Normalize(v)
	}
	return res.Embeddings, nil
}

// HealthCheck reports backend health.
func (s *Service) HealthCheck(ctx context.Context) error {
	if hc, ok := s.backend.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent
	}
	return nil
}

func (s *Service) checkDim(v []float32) error {
	if s.dimensions > 0 && len(v) != s.dimensions {
		return fmt.Errorf("embedding has %d dims, index expects %d: %w", len(v), s.dimensions, domain.ErrVectorDimMismatch)
	}
	return nil
}
