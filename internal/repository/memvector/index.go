// Package memvector is an in-process brute-force cosine index with the same
// contract as the Valkey-backed vector repository. Used by the "memory" driver
// and in tests; contents do not survive a restart.
package memvector

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
)

type key struct {
	tenantID   string
	documentID string
	chunkIndex int
}

// Index holds records in memory.
type Index struct {
	mu      sync.RWMutex
	dim     int
	records map[key]record.Record
}

// New creates an empty index for vectors of size dim.
func New(dim int) *Index {
	return &Index{dim: dim, records: make(map[key]record.Record)}
}

// Dimensions returns the configured vector size.
func (x *Index) Dimensions() int { return x.dim }

// EnsureIndex is a no-op.
func (x *Index) EnsureIndex(context.Context) error { return nil }

// DropIndex is a no-op; records are their own index.
func (x *Index) DropIndex(context.Context) error { return nil }

// Ping always succeeds.
func (x *Index) Ping(context.Context) error { return nil }

// Upsert stores copies of the records, replacing existing ones with the same document and chunk index.
func (x *Index) Upsert(_ context.Context, records []record.Record) error {
	for i := range records {
		if err := records[i].Validate(x.dim); err != nil {
			return err
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		r.Content = record.TruncateContent(r.Content)
		x.records[key{r.TenantID, r.DocumentID, r.ChunkIndex}] = r
	}
	return nil
}

// Search scores every record in scope and returns the topK best, ties broken by id.
func (x *Index) Search(_ context.Context, vec []float32, scope filter.Expression, topK int) ([]result.Result, error) {
	if len(vec) != x.dim {
		return nil, fmt.Errorf("query vector: got %d, want %d: %w", len(vec), x.dim, domain.ErrVectorDimMismatch)
	}
	if topK <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	hits := make([]result.Result, 0, min(topK, len(x.records)))
	for _, r := range x.records {
		if !scope.Matches(fields(&r)) {
			continue
		}
		score := max(0, domain.CosineSimilarity(vec, r.Vector))
		hits = append(hits, result.New(r.ID, score, r.Payload))
	}
	x.mu.RUnlock()

	slices.SortFunc(hits, func(a, b result.Result) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByDocument removes every record of a document.
func (x *Index) DeleteByDocument(_ context.Context, tenantID, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for k := range x.records {
		if k.tenantID == tenantID && k.documentID == documentID {
			delete(x.records, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

func fields(r *record.Record) map[string]string {
	return map[string]string{
		filter.FieldTenantID:     r.TenantID,
		filter.FieldDepartmentID: r.DepartmentID,
		filter.FieldDocumentID:   r.DocumentID,
		filter.FieldSourceType:   string(r.SourceType),
		"chunk_index":            strconv.Itoa(r.ChunkIndex),
	}
}
