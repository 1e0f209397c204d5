package ingestion

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/chunk"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/document"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/repository/memvector"
)

const testDim = 4

// memDocs is an in-memory DocumentStore.
type memDocs struct {
	mu     sync.Mutex
	docs   map[string]document.Document
	chunks map[string][]chunk.Chunk
	saves  []document.Status
}

func newMemDocs() *memDocs {
	return &memDocs{docs: map[string]document.Document{}, chunks: map[string][]chunk.Chunk{}}
}

func (m *memDocs) SaveDocument(_ context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.TenantID()+"/"+d.ID()] = *d
	m.saves = append(m.saves, d.Status())
	return nil
}

func (m *memDocs) GetDocument(_ context.Context, tenantID, id string) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[tenantID+"/"+id]
	if !ok {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	return d, nil
}

func (m *memDocs) ListDocuments(_ context.Context, tenantID, departmentID string) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []document.Document
	for _, d := range m.docs {
		if d.TenantID() == tenantID && (departmentID == "" || d.DepartmentID() == departmentID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) DeleteDocument(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tenantID + "/" + id
	if _, ok := m.docs[k]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.docs, k)
	delete(m.chunks, k)
	return nil
}

func (m *memDocs) CompleteIngestion(_ context.Context, d *document.Document, chunks []chunk.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := d.TenantID() + "/" + d.ID()
	m.docs[k] = *d
	m.chunks[k] = chunks
	m.saves = append(m.saves, d.Status())
	return nil
}

// hashEmbedder returns a deterministic vector per text.
type hashEmbedder struct {
	err   error
	short bool
	calls int
}

func (e *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		v := h.Sum32()
		out = append(out, []float32{float32(v&0xff) + 1, float32(v>>8&0xff) + 1, float32(v>>16&0xff) + 1, 1})
	}
	if e.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type mockDepartments struct {
	err error
}

func (m *mockDepartments) Get(_ context.Context, tenantID, deptID string) (department.Config, error) {
	if m.err != nil {
		return department.Config{}, m.err
	}
	return department.Config{ID: deptID, TenantID: tenantID}, nil
}

type countingIndex struct {
	*memvector.Index
	upserts int
}

func (c *countingIndex) Upsert(ctx context.Context, records []record.Record) error {
	c.upserts++
	return c.Index.Upsert(ctx, records)
}
