package ingestion

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/chunk"
	"github.com/kailas-cloud/knowledgeops/internal/domain/document"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/logger"
	"github.com/kailas-cloud/knowledgeops/internal/metrics"
)

var (
	errNoText   = errors.New("no text content extracted")
	errNoChunks = errors.New("no chunks generated")
)

const defaultUpsertBatch = 100

// Request is one document submitted for indexing.
type Request struct {
	TenantID     string
	DepartmentID string
	DocumentID   string // generated when empty
	Title        string
	SourceName   string
	Text         string
	Metadata     map[string]string
}

// Service turns raw text into searchable chunks.
type Service struct {
	docs     DocumentStore
	index    VectorIndex
	embedder Embedder
	depts    Departments
	splitter *chunk.Splitter
	batch    int
	now      func() time.Time
}

// New creates an ingestion service.
func New(docs DocumentStore, index VectorIndex, embedder Embedder, depts Departments, splitter *chunk.Splitter) *Service {
	if splitter == nil {
		splitter = chunk.NewSplitter()
	}
	return &Service{
		docs:     docs,
		index:    index,
		embedder: embedder,
		depts:    depts,
		splitter: splitter,
		batch:    defaultUpsertBatch,
		now:      time.Now,
	}
}

// WithUpsertBatchSize bounds the number of records per vector upsert call.
func (s *Service) WithUpsertBatchSize(n int) *Service {
	if n > 0 {
		s.batch = n
	}
	return s
}

// Ingest chunks, embeds and indexes a document. Re-ingesting an existing id replaces
// its chunks. Empty text and chunkless text are recorded as failed documents, not errors.
// Any other failure marks the document failed and is returned.
func (s *Service) Ingest(ctx context.Context, req Request) (document.Document, error) {
	if _, err := s.depts.Get(ctx, req.TenantID, req.DepartmentID); err != nil {
		return document.Document{}, fmt.Errorf("resolve department: %w", err)
	}
	if len(req.Text) > document.MaxContentSize {
		return document.Document{}, fmt.Errorf("content too large (max %d bytes): %w",
			document.MaxContentSize, domain.ErrInvalidInput)
	}

	id := req.DocumentID
	if id == "" {
		id = uuid.NewString()
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.SourceName
	}

	doc, err := document.New(id, req.TenantID, req.DepartmentID, title, req.SourceName, s.now())
	if err != nil {
		return document.Document{}, err
	}

	log := logger.FromContext(ctx).With(
		zap.String("tenant_id", req.TenantID),
		zap.String("department_id", req.DepartmentID),
		zap.String("document_id", id),
	)

	doc.StartProcessing(s.now())
	if err := s.docs.SaveDocument(ctx, &doc); err != nil {
		return document.Document{}, fmt.Errorf("save document: %w", err)
	}

	if strings.TrimSpace(req.Text) == "" {
		return s.fail(ctx, log, &doc, errNoText), nil
	}

	n, err := s.indexChunks(ctx, &doc, req)
	if errors.Is(err, errNoChunks) {
		return s.fail(ctx, log, &doc, err), nil
	}
	if err != nil {
		return s.fail(ctx, log, &doc, err), err
	}

	metrics.ChunksIngestedTotal.Add(float64(n))
	metrics.DocumentsIngestedTotal.WithLabelValues(string(document.StatusIndexed)).Inc()
	log.Info("Document indexed", zap.Int("chunks", n))
	return doc, nil
}

func (s *Service) indexChunks(ctx context.Context, doc *document.Document, req Request) (int, error) {
	meta := make(map[string]string, len(req.Metadata)+4)
	maps.Copy(meta, req.Metadata)
	meta[chunk.MetaDocumentID] = doc.ID()
	meta["tenant_id"] = doc.TenantID()
	meta["department_id"] = doc.DepartmentID()
	meta["title"] = doc.Title()

	chunks := s.splitter.SplitDocument(req.Text, meta)
	if len(chunks) == 0 {
		return 0, errNoChunks
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed chunks: got %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingProviderError)
	}

	// stale chunks of a previous, longer version must not survive
	if _, err := s.index.DeleteByDocument(ctx, doc.TenantID(), doc.ID()); err != nil {
		return 0, fmt.Errorf("clear previous chunks: %w", err)
	}

	records := make([]record.Record, len(chunks))
	for i, c := range chunks {
		records[i] = record.Record{
			ID:     record.ChunkID(doc.TenantID(), doc.ID(), c.Index),
			Vector: vectors[i],
			Payload: record.Payload{
				TenantID:     doc.TenantID(),
				DepartmentID: doc.DepartmentID(),
				DocumentID:   doc.ID(),
				ChunkIndex:   c.Index,
				Content:      record.TruncateContent(c.Content),
				Title:        doc.Title(),
				SourceType:   record.SourceDocument,
			},
		}
	}
	for start := 0; start < len(records); start += s.batch {
		end := min(start+s.batch, len(records))
		if err := s.index.Upsert(ctx, records[start:end]); err != nil {
			return 0, fmt.Errorf("upsert chunks %d-%d: %w", start, end, err)
		}
	}

	doc.MarkIndexed(len(chunks), s.now())
	if err := s.docs.CompleteIngestion(ctx, doc, chunks); err != nil {
		return 0, fmt.Errorf("complete ingestion: %w", err)
	}
	return len(chunks), nil
}

func (s *Service) fail(ctx context.Context, log *zap.Logger, doc *document.Document, cause error) document.Document {
	doc.MarkFailed(cause, s.now())
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		log.Error("Failed to persist failed document", zap.Error(err))
	}
	metrics.DocumentsIngestedTotal.WithLabelValues(string(document.StatusFailed)).Inc()
	log.Warn("Document ingestion failed", zap.Error(cause))
	return *doc
}

// Get returns a tenant's document.
func (s *Service) Get(ctx context.Context, tenantID, id string) (document.Document, error) {
	d, err := s.docs.GetDocument(ctx, tenantID, id)
	if err != nil {
		return document.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// List returns a department's documents. Empty departmentID lists the tenant.
func (s *Service) List(ctx context.Context, tenantID, departmentID string) ([]document.Document, error) {
	docs, err := s.docs.ListDocuments(ctx, tenantID, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document's vectors, then its row and chunk mirror.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.docs.GetDocument(ctx, tenantID, id); err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	removed, err := s.index.DeleteByDocument(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.docs.DeleteDocument(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.FromContext(ctx).Info("Document deleted",
		zap.String("document_id", id), zap.Int("vectors", removed))
	return nil
}
