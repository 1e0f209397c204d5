package ingestion

import (
	"context"

	"github.com/kailas-cloud/knowledgeops/internal/domain/chunk"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
	"github.com/kailas-cloud/knowledgeops/internal/domain/document"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
)

// DocumentStore persists document rows and their chunk mirror.
type DocumentStore interface {
	SaveDocument(ctx context.Context, d *document.Document) error
	GetDocument(ctx context.Context, tenantID, id string) (document.Document, error)
	ListDocuments(ctx context.Context, tenantID, departmentID string) ([]document.Document, error)
	DeleteDocument(ctx context.Context, tenantID, id string) error
	CompleteIngestion(ctx context.Context, d *document.Document, chunks []chunk.Chunk) error
}

// VectorIndex stores chunk vectors.
type VectorIndex interface {
	Upsert(ctx context.Context, records []record.Record) error
	DeleteByDocument(ctx context.Context, tenantID, documentID string) (int, error)
}

// Embedder vectorizes passages for indexing.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Departments resolves the department a document is filed under.
type Departments interface {
	Get(ctx context.Context, tenantID, deptID string) (department.Config, error)
}
