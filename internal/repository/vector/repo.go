package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/knowledgeops/internal/db"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
)

// UpsertBatchSize bounds the number of hashes sent per pipelined round-trip.
const UpsertBatchSize = 100

// deletePageSize is the FT.SEARCH page used to resolve the keys of a document.
const deletePageSize = 500

// store is the consumer interface for vector records (ISP).
//
//nolint:interfacebloat // vector repo needs hash + index management + search
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores chunk and verified-answer vectors as hashes under one FT index.
type Repo struct {
	store  store
	prefix string
	dim    int
	hnsw   HNSWConfig
}

// New creates a vector repository. prefix namespaces every key (e.g. "kops:").
func New(s store, prefix string, dim int) *Repo {
	return &Repo{store: s, prefix: prefix, dim: dim}
}

// WithHNSW sets HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// Dimensions returns the configured vector size.
func (r *Repo) Dimensions() int { return r.dim }

// EnsureIndex creates the FT index if it does not exist. Safe to call repeatedly.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName(), err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.indexName(), r.recordPrefix(), r.dim, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Concurrent setup raced us.
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// DropIndex removes the FT index and keeps the record hashes, so a following
// EnsureIndex rebuilds it over the existing records. A missing index is not an error.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.indexName(), err)
	}
	return nil
}

// Upsert writes records in batches. Existing keys are overwritten.
func (r *Repo) Upsert(ctx context.Context, records []record.Record) error {
	for i := range records {
		if err := records[i].Validate(r.dim); err != nil {
			return err
		}
	}

	for start := 0; start < len(records); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(records))
		items := make([]db.HashSetItem, 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, db.HashSetItem{
				Key:    r.recordKey(records[i].ID),
				Fields: toHash(&records[i]),
			})
		}
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("upsert batch at %d: %w", start, err)
		}
	}
	return nil
}

// Search returns the topK nearest records inside the tenant+department scope, best first.
func (r *Repo) Search(
	ctx context.Context, vec []float32, scope filter.Expression, topK int,
) ([]result.Result, error) {
	if len(vec) != r.dim {
		return nil, fmt.Errorf("query vector: %w", dimErr(len(vec), r.dim))
	}
	if topK <= 0 {
		return nil, nil
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		VectorField:  fieldVector,
		Filters:      scope,
		Vector:       vec,
		K:            topK,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	out := make([]result.Result, 0, len(res.Entries))
	for _, e := range res.Entries {
		// Index pre-filter already scoped the query; re-check so a bad filter can never leak.
		if !scope.Matches(e.Fields) {
			continue
		}
		out = append(out, result.New(e.Fields[fieldID], e.Score, fromHash(e.Fields)))
	}
	return out, nil
}

// DeleteByDocument removes every record of a document and returns how many were deleted.
// Keys are resolved through the index with an exact tenant+document tag match.
func (r *Repo) DeleteByDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	scope, err := filter.DocumentScope(tenantID, documentID)
	if err != nil {
		return 0, fmt.Errorf("document scope: %w", err)
	}

	var keys []string
	for offset := 0; ; offset += deletePageSize {
		res, err := r.store.SearchFilter(ctx, &db.FilterQuery{
			IndexName:    r.indexName(),
			Filters:      scope,
			ReturnFields: []string{filter.FieldTenantID, filter.FieldDocumentID},
			Offset:       offset,
			Limit:        deletePageSize,
		})
		if err != nil {
			return 0, fmt.Errorf("find records of %s: %w", documentID, err)
		}
		for _, e := range res.Entries {
			if scope.Matches(e.Fields) {
				keys = append(keys, e.Key)
			}
		}
		if len(res.Entries) < deletePageSize || offset+deletePageSize >= res.Total {
			break
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.store.Del(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("delete %d records of %s: %w", len(keys), documentID, err)
	}
	return n, nil
}

func (r *Repo) indexName() string {
	return r.prefix + "idx"
}

func (r *Repo) recordPrefix() string {
	return r.prefix + "vec:"
}

func (r *Repo) recordKey(id string) string {
	return r.recordPrefix() + id
}
