package embedding

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

// RandomEmbedder is the degraded-mode embedder: it returns unit vectors of the configured
// dimension with random direction. Retrieval quality is meaningless, the contract holds.
type RandomEmbedder struct {
	dim int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomEmbedder creates a degraded embedder. A non-zero seed makes the sequence reproducible.
func NewRandomEmbedder(dim int, seed uint64) *RandomEmbedder {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomEmbedder{dim: dim, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Embed returns a random unit vector.
func (r *RandomEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: r.vector()}, nil
}

// BatchEmbed returns one random unit vector per text.
func (r *RandomEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = r.vector()
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func (r *RandomEmbedder) vector() []float32 {
	v := make([]float32, r.dim)
	r.mu.Lock()
	for i := range v {
		v[i] = float32(r.rng.NormFloat64())
	}
	r.mu.Unlock()
	return domain.Normalize(v)
}
