package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

// SourceType distinguishes raw document passages from human-verified answers.
type SourceType string

const (
	// SourceDocument is a passage produced by document ingestion.
	SourceDocument SourceType = "document"
	// SourceVerifiedAnswer is an approved Q&A pair fed back from approval resolution.
	SourceVerifiedAnswer SourceType = "verified_answer"
)

// VerifiedPrefix prefixes the synthesized document id of verified answers.
const VerifiedPrefix = "verified_"

// MaxStoredContent bounds the payload content kept next to the vector (in characters).
const MaxStoredContent = 500

var idNamespace = uuid.MustParse("6f1c3e2a-8d4b-5a7e-9c10-2b3d4e5f6a7b")

// Payload is the metadata stored next to a vector.
type Payload struct {
	TenantID     string
	DepartmentID string
	DocumentID   string
	ChunkIndex   int
	Content      string
	Title        string
	SourceType   SourceType
}

// Record is a single vector-index entry.
type Record struct {
	ID     string
	Vector []float32
	Payload
}

// ChunkID derives the stable record id of a document chunk. Re-ingesting the same
// chunk always produces the same id, so upserts overwrite instead of duplicating.
// Components are length-prefixed: no tenant/document split can collide with another.
func ChunkID(tenantID, documentID string, chunkIndex int) string {
	name := strconv.Itoa(len(tenantID)) + ":" + tenantID + "/" +
		strconv.Itoa(len(documentID)) + ":" + documentID + "/" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// VerifiedDocumentID returns the synthesized document id for an approval's verified answer.
func VerifiedDocumentID(approvalID string) string {
	return VerifiedPrefix + approvalID
}

// VerifiedContent formats a verified Q&A pair for indexing.
func VerifiedContent(question, answer string) string {
	return "Q: " + question + "\nA: " + answer
}

// NewVerified builds the record indexed when an approval is accepted.
func NewVerified(approvalID, tenantID, departmentID, question, answer string, vector []float32) Record {
	docID := VerifiedDocumentID(approvalID)
	return Record{
		ID:     ChunkID(tenantID, docID, 0),
		Vector: vector,
		Payload: Payload{
			TenantID:     tenantID,
			DepartmentID: departmentID,
			DocumentID:   docID,
			ChunkIndex:   0,
			Content:      VerifiedContent(question, answer),
			Title:        "Verified answer",
			SourceType:   SourceVerifiedAnswer,
		},
	}
}

// Validate checks that the record is well-formed for an index of the given dimension.
func (r *Record) Validate(dim int) error {
	if r.ID == "" {
		return fmt.Errorf("record id is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(r.TenantID) == "" || strings.TrimSpace(r.DepartmentID) == "" {
		return fmt.Errorf("record %s: tenant and department are required: %w", r.ID, domain.ErrInvalidInput)
	}
	if r.DocumentID == "" {
		return fmt.Errorf("record %s: document id is required: %w", r.ID, domain.ErrInvalidInput)
	}
	if dim > 0 && len(r.Vector) != dim {
		return fmt.Errorf("record %s: got %d, want %d: %w", r.ID, len(r.Vector), dim, domain.ErrVectorDimMismatch)
	}
	return nil
}

// TruncateContent cuts s to MaxStoredContent characters.
func TruncateContent(s string) string {
	n := 0
	for i := range s {
		if n == MaxStoredContent {
			return s[:i]
		}
		n++
	}
	return s
}
