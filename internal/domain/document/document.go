package document

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 8 << 20 // 8MB

// MaxTitleChars bounds the document title.
const MaxTitleChars = 500

// Status is the ingestion lifecycle state.
type Status string

// Lifecycle: pending -> processing -> indexed | failed. Re-ingestion restarts from processing.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusIndexed    Status = "indexed"
	StatusFailed     Status = "failed"
)

// Document is the knowledge-base document aggregate.
type Document struct {
	id           string
	tenantID     string
	departmentID string
	title        string
	sourceName   string
	status       Status
	chunkCount   int
	errMsg       string
	createdAt    time.Time
	updatedAt    time.Time
}

// New validates and creates a pending Document.
// ID: ^[a-zA-Z0-9_.-]+$, 1-256 chars. Title: non-empty, max 500 chars.
func New(id, tenantID, departmentID, title, sourceName string, now time.Time) (Document, error) {
	if err := ValidateID(id); err != nil {
		return Document{}, err
	}
	if tenantID == "" {
		return Document{}, fmt.Errorf("tenant ID is required: %w", domain.ErrInvalidInput)
	}
	if departmentID == "" {
		return Document{}, fmt.Errorf("department ID is required: %w", domain.ErrInvalidInput)
	}
	if title == "" {
		return Document{}, fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > MaxTitleChars {
		return Document{}, fmt.Errorf("title too long (max %d): %w", MaxTitleChars, domain.ErrInvalidInput)
	}

	return Document{
		id:           id,
		tenantID:     tenantID,
		departmentID: departmentID,
		title:        title,
		sourceName:   sourceName,
		status:       StatusPending,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ValidateID checks the document identifier format.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID is required: %w", domain.ErrInvalidInput)
	}
	if len(id) > 256 {
		return fmt.Errorf("document ID too long (max 256): %w", domain.ErrInvalidInput)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("document ID must be alphanumeric with underscores, dots and hyphens: %w", domain.ErrInvalidInput)
	}
	return nil
}

// ValidateContent checks the raw text before chunking.
func ValidateContent(content string) error {
	if content == "" {
		return fmt.Errorf("content is required: %w", domain.ErrInvalidInput)
	}
	if len(content) > MaxContentSize {
		return fmt.Errorf("content too large (max %d bytes): %w", MaxContentSize, domain.ErrInvalidInput)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("content must be valid UTF-8: %w", domain.ErrInvalidInput)
	}
	return nil
}

// Snapshot is the flat persisted form of a Document.
type Snapshot struct {
	ID           string
	TenantID     string
	DepartmentID string
	Title        string
	SourceName   string
	Status       Status
	ChunkCount   int
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(s Snapshot) Document {
	return Document{
		id: s.ID, tenantID: s.TenantID, departmentID: s.DepartmentID,
		title: s.Title, sourceName: s.SourceName, status: s.Status,
		chunkCount: s.ChunkCount, errMsg: s.Error,
		createdAt: s.CreatedAt, updatedAt: s.UpdatedAt,
	}
}

// Snapshot returns the persisted form.
func (d *Document) Snapshot() Snapshot {
	return Snapshot{
		ID: d.id, TenantID: d.tenantID, DepartmentID: d.departmentID,
		Title: d.title, SourceName: d.sourceName, Status: d.status,
		ChunkCount: d.chunkCount, Error: d.errMsg,
		CreatedAt: d.createdAt, UpdatedAt: d.updatedAt,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// TenantID returns the owning tenant.
func (d *Document) TenantID() string { return d.tenantID }

// DepartmentID returns the owning department.
func (d *Document) DepartmentID() string { return d.departmentID }

// Title returns the human-readable title used in source citations.
func (d *Document) Title() string { return d.title }

// SourceName returns the original file name, if any.
func (d *Document) SourceName() string { return d.sourceName }

// Status returns the lifecycle state.
func (d *Document) Status() Status { return d.status }

// ChunkCount returns the number of indexed chunks.
func (d *Document) ChunkCount() int { return d.chunkCount }

// Error returns the last ingestion failure message.
func (d *Document) Error() string { return d.errMsg }

// CreatedAt returns the creation time.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last modification time.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// StartProcessing moves the document into processing and clears a previous failure.
func (d *Document) StartProcessing(now time.Time) {
	d.status = StatusProcessing
	d.errMsg = ""
	d.updatedAt = now
}

// MarkIndexed records a successful ingestion.
func (d *Document) MarkIndexed(chunks int, now time.Time) {
	d.status = StatusIndexed
	d.chunkCount = chunks
	d.errMsg = ""
	d.updatedAt = now
}

// MarkFailed records a failed ingestion. Chunk count is reset.
func (d *Document) MarkFailed(err error, now time.Time) {
	d.status = StatusFailed
	d.chunkCount = 0
	if err != nil {
		d.errMsg = err.Error()
	}
	d.updatedAt = now
}
