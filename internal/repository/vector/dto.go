package vector

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/knowledgeops/internal/db"
	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
)

// Hash field names.
const (
	fieldID         = "id"
	fieldChunkIndex = "chunk_index"
	fieldContent    = "content"
	fieldTitle      = "title"
	fieldVector     = "vector"
)

var returnFields = []string{
	fieldID,
	filter.FieldTenantID,
	filter.FieldDepartmentID,
	filter.FieldDocumentID,
	filter.FieldSourceType,
	fieldChunkIndex,
	fieldContent,
	fieldTitle,
}

func buildIndex(name, prefix string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(name).
		Prefix(prefix).
		Tag(filter.FieldTenantID, filter.FieldDepartmentID, filter.FieldDocumentID, filter.FieldSourceType).
		Numeric(fieldChunkIndex).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	return def, nil
}

func toHash(r *record.Record) map[string]string {
	return map[string]string{
		fieldID:                  r.ID,
		filter.FieldTenantID:     r.TenantID,
		filter.FieldDepartmentID: r.DepartmentID,
		filter.FieldDocumentID:   r.DocumentID,
		filter.FieldSourceType:   string(r.SourceType),
		fieldChunkIndex:          strconv.Itoa(r.ChunkIndex),
		fieldContent:             record.TruncateContent(r.Content),
		fieldTitle:               r.Title,
		fieldVector:              db.EncodeVector(r.Vector),
	}
}

func fromHash(m map[string]string) record.Payload {
	idx, _ := strconv.Atoi(m[fieldChunkIndex])
	return record.Payload{
		TenantID:     m[filter.FieldTenantID],
		DepartmentID: m[filter.FieldDepartmentID],
		DocumentID:   m[filter.FieldDocumentID],
		ChunkIndex:   idx,
		Content:      m[fieldContent],
		Title:        m[fieldTitle],
		SourceType:   record.SourceType(m[filter.FieldSourceType]),
	}
}

func dimErr(got, want int) error {
	return fmt.Errorf("got %d, want %d: %w", got, want, domain.ErrVectorDimMismatch)
}
