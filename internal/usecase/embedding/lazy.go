package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/metrics"
)

// Mode reports which embedder backs the service.
type Mode string

const (
	// ModeModel means the real embedding model is in use.
	ModeModel Mode = "model"
	// ModeDegraded means random unit vectors are served.
	ModeDegraded Mode = "degraded"
	// ModeUnloaded means nothing has been requested yet.
	ModeUnloaded Mode = "unloaded"
)

// DefaultLoadTimeout bounds a single load attempt.
const DefaultLoadTimeout = 30 * time.Second

// Loader constructs and verifies the real embedder. It succeeds at most once per LazyEmbedder.
type Loader func(ctx context.Context) (domain.Embedder, error)

// LazyEmbedder loads the real embedder on first use. If loading fails it switches to the
// degraded embedder for the rest of the process lifetime. The load runs detached from the
// caller's cancellation under its own timeout; a caller that is already gone gets its
// context error and leaves the embedder unloaded.
type LazyEmbedder struct {
	load        Loader
	degraded    domain.Embedder
	logger      *zap.Logger
	loadTimeout time.Duration

	mu     sync.Mutex
	loaded domain.Embedder
	mode   Mode
}

// NewLazyEmbedder creates a lazily-initialised embedder.
func NewLazyEmbedder(load Loader, degraded domain.Embedder, logger *zap.Logger) *LazyEmbedder {
	return &LazyEmbedder{
		load: load, degraded: degraded, logger: logger,
		loadTimeout: DefaultLoadTimeout, mode: ModeUnloaded,
	}
}

// WithLoadTimeout overrides DefaultLoadTimeout.
func (l *LazyEmbedder) WithLoadTimeout(d time.Duration) *LazyEmbedder {
	if d > 0 {
		l.loadTimeout = d
	}
	return l
}

func (l *LazyEmbedder) get(ctx context.Context) (domain.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded != nil {
		return l.loaded, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.loadTimeout)
	defer cancel()

	emb, err := l.load(lctx)
	if errors.Is(err, context.Canceled) {
		// not a verdict on the backend; the next caller retries
		return nil, fmt.Errorf("load embedder: %w", err)
	}
	if err != nil || emb == nil {
		l.logger.Warn("Embedding model unavailable, serving random vectors", zap.Error(err))
		l.loaded, l.mode = l.degraded, ModeDegraded
		metrics.EmbedderMode.WithLabelValues(string(ModeDegraded)).Set(1)
		return l.loaded, nil
	}

	l.loaded, l.mode = emb, ModeModel
	metrics.EmbedderMode.WithLabelValues(string(ModeModel)).Set(1)
	return l.loaded, nil
}

// Mode returns the active mode without triggering a load.
func (l *LazyEmbedder) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// Embed implements domain.Embedder.
func (l *LazyEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	emb, err := l.get(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	res, err := emb.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("lazy embed: %w", err)
	}
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (l *LazyEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	emb, err := l.get(ctx)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if be, ok := emb.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // transparent decorator
	}
	return domain.BatchFallback(ctx, emb, texts)
}

// HealthCheck reports the loaded embedder's health. The degraded embedder is always healthy.
func (l *LazyEmbedder) HealthCheck(ctx context.Context) error {
	emb, err := l.get(ctx)
	if err != nil {
		return err
	}
	if hc, ok := emb.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
