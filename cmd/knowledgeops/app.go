package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowledgeops/internal/config"
	"github.com/kailas-cloud/knowledgeops/internal/db"
	dbRedis "github.com/kailas-cloud/knowledgeops/internal/db/redis"
	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/chunk"
	"github.com/kailas-cloud/knowledgeops/internal/domain/confidence"
	domdept "github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/knowledgeops/internal/logger"
	"github.com/kailas-cloud/knowledgeops/internal/metrics"
	deptrepo "github.com/kailas-cloud/knowledgeops/internal/repository/department"
	"github.com/kailas-cloud/knowledgeops/internal/repository/embcache"
	"github.com/kailas-cloud/knowledgeops/internal/repository/memvector"
	"github.com/kailas-cloud/knowledgeops/internal/repository/sqlite"
	vectorrepo "github.com/kailas-cloud/knowledgeops/internal/repository/vector"
	openaiTransport "github.com/kailas-cloud/knowledgeops/internal/transport/openai"
	approvaluc "github.com/kailas-cloud/knowledgeops/internal/usecase/approval"
	embeddinguc "github.com/kailas-cloud/knowledgeops/internal/usecase/embedding"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/knowledgeops/internal/usecase/health"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/ingestion"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/query"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/retrieval"
)

const embeddingProvider = "openai"

// vectorIndex is what both vector backends provide.
type vectorIndex interface {
	EnsureIndex(ctx context.Context) error
	DropIndex(ctx context.Context) error
	Upsert(ctx context.Context, records []record.Record) error
	Search(ctx context.Context, vec []float32, scope filter.Expression, topK int) ([]result.Result, error)
	DeleteByDocument(ctx context.Context, tenantID, documentID string) (int, error)
	Ping(ctx context.Context) error
}

// app is the composition root shared by every command.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger

	store      db.Store // nil for the memory driver
	index      vectorIndex
	sql        *sqlite.Store
	embeddings *embeddinguc.Service
	chat       *openaiTransport.ChatClient
	depts      *deptrepo.Registry
}

// newApp loads configuration and opens every backend.
func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.Register()

	a := &app{env: env, cfg: cfg, logger: logger}
	if err := a.openVectorIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.sql, err = sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	a.embeddings = a.buildEmbeddings()
	a.chat = openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		DefaultModel:      cfg.LLM.DefaultModel,
		VisionModel:       cfg.LLM.VisionModel,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		Logger:            logger,
	})
	a.depts = deptrepo.New(departments(cfg))

	return a, nil
}

func (a *app) openVectorIndex(ctx context.Context) error {
	cfg := a.cfg.Database
	dim := a.cfg.Embedding.Dimensions

	if cfg.Driver == "memory" {
		a.logger.Warn("Using in-memory vector index, vectors are lost on restart")
		a.index = memvector.New(dim)
		return nil
	}

	// valkey and redis share the rueidis client; both speak FT.* via the search module
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	a.store = store

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	a.logger.Info("Connected to database", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))

	a.index = &pingableRepo{
		Repo: vectorrepo.New(store, a.cfg.Storage.KeyPrefix, dim).WithHNSW(vectorrepo.HNSWConfig{
			M:           cfg.HNSWM,
			EFConstruct: cfg.HNSWEFConstruct,
		}),
		pinger: store,
	}
	return nil
}

// pingableRepo reports the health of the store behind the vector repository.
type pingableRepo struct {
	*vectorrepo.Repo
	pinger db.Pinger
}

func (p *pingableRepo) Ping(ctx context.Context) error {
	return p.pinger.Ping(ctx) //nolint:wrapcheck // transparent
}

// buildEmbeddings assembles the decorator chain:
// OpenAI -> Cached -> Instrumented, loaded lazily with a random-vector fallback.
func (a *app) buildEmbeddings() *embeddinguc.Service {
	cfg := a.cfg.Embedding
	logger := a.logger

	load := func(ctx context.Context) (domain.Embedder, error) {
		if cfg.Degraded {
			return nil, errors.New("degraded mode enabled by configuration")
		}

		base := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   embeddingProvider,
			Logger:     logger,
		})
		if err := base.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("embedding model %s: %w", cfg.Model, err)
		}

		var embedder domain.Embedder = base
		if a.store != nil && cfg.Cache {
			embedder = embcache.New(base, a.store, a.cfg.Storage.KeyPrefix, cfg.Model,
				time.Duration(cfg.CacheTTLHours)*time.Hour, metrics.EmbeddingCacheTotal, logger)
		}

		return embeddinguc.NewInstrumentedEmbedder(
			embedder, embeddingProvider, cfg.Model, a.cfg.Timeouts.Embedding(), logger,
		), nil
	}

	lazy := embeddinguc.NewLazyEmbedder(load, embeddinguc.NewRandomEmbedder(cfg.Dimensions, 0), logger).
		WithLoadTimeout(a.cfg.Timeouts.Embedding())
	return embeddinguc.New(lazy, cfg.QueryInstruction, cfg.DocumentInstruction, cfg.Dimensions)
}

func departments(cfg config.Config) []domdept.Config {
	out := make([]domdept.Config, 0, len(cfg.Departments))
	for _, d := range cfg.Departments {
		threshold := d.ConfidenceThreshold
		if threshold <= 0 {
			threshold = cfg.Confidence.DefaultThreshold
		}
		vision := true
		if d.VisionEnabled != nil {
			vision = *d.VisionEnabled
		}
		out = append(out, domdept.Config{
			ID:                  d.ID,
			TenantID:            d.TenantID,
			Name:                d.Name,
			Kind:                d.Kind,
			Model:               d.Model,
			ConfidenceThreshold: threshold,
			SystemPrompt:        d.SystemPrompt,
			TopK:                d.TopK,
			MaxContextTokens:    d.MaxContextTokens,
			VisionEnabled:       vision,
		})
	}
	return out
}

func (a *app) ingestion() *ingestion.Service {
	splitter := chunk.NewSplitter(
		chunk.WithChunkSize(a.cfg.RAG.ChunkSize),
		chunk.WithOverlap(a.cfg.RAG.ChunkOverlap),
	)
	return ingestion.New(a.sql, a.index, a.embeddings, a.depts, splitter).
		WithUpsertBatchSize(a.cfg.RAG.UpsertBatchSize)
}

func (a *app) query() *query.Service {
	c := a.cfg.Confidence
	scorer := confidence.NewEstimator(confidence.Weights{
		Base:            *c.Base,
		RetrievalWeight: *c.RetrievalWeight,
		LengthBonus:     *c.LengthBonus,
		LengthThreshold: c.LengthThreshold,
		HedgePenalty:    *c.HedgePenalty,
		HedgePhrases:    c.HedgePhrases,
	})
	retriever := retrieval.New(a.embeddings, a.index, retrieval.Options{
		TopK:           a.cfg.RAG.TopK,
		RelevanceFloor: *a.cfg.RAG.RelevanceFloor,
		VerifiedBoost:  *a.cfg.RAG.VerifiedBoost,
	})
	generator := generation.New(a.chat, a.cfg.Timeouts.Generation())

	return query.New(a.depts, a.sql, retriever, generator, a.chat, scorer).
		WithTimeouts(query.Timeouts{
			Vision:    a.cfg.Timeouts.Vision(),
			Retrieval: a.cfg.Timeouts.Retrieval(),
		}).
		WithMaxContextTokens(a.cfg.RAG.MaxContextTokens)
}

func (a *app) approvals() *approvaluc.Service {
	return approvaluc.New(a.sql, a.index, a.embeddings)
}

func (a *app) health() *healthuc.Service {
	return healthuc.New(a.index, a.embeddings).
		WithStore(a.sql).
		WithLLM(a.chat).
		WithEmbedderMode(healthuc.ModeFunc(func() string { return string(a.embeddings.Mode()) }))
}

// Close releases every opened backend.
func (a *app) Close() {
	if a.sql != nil {
		if err := a.sql.Close(); err != nil {
			a.logger.Warn("Failed to close sqlite", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}
