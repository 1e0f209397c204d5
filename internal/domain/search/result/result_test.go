package result

import (
	"testing"

	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
)

func TestNew(t *testing.T) {
	r := New("rec-1", 0.95, record.Payload{
		TenantID:     "t1",
		DepartmentID: "d1",
		DocumentID:   "doc-1",
		ChunkIndex:   2,
		Content:      "hello",
		Title:        "Handbook",
		SourceType:   record.SourceDocument,
	})

	if r.ID() != "rec-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() != 0.95 {
		t.Errorf("Score() = %f", r.Score())
	}
	if r.Content() != "hello" || r.Title() != "Handbook" {
		t.Errorf("Content()/Title() = %q/%q", r.Content(), r.Title())
	}
	if r.DocumentID() != "doc-1" || r.ChunkIndex() != 2 {
		t.Errorf("DocumentID()/ChunkIndex() = %q/%d", r.DocumentID(), r.ChunkIndex())
	}
	if r.TenantID() != "t1" || r.DepartmentID() != "d1" {
		t.Errorf("TenantID()/DepartmentID() = %q/%q", r.TenantID(), r.DepartmentID())
	}
	if r.IsVerified() {
		t.Error("document hit reported as verified")
	}
}

func TestWithScore_Copies(t *testing.T) {
	r := New("id", 0.4, record.Payload{SourceType: record.SourceVerifiedAnswer})
	boosted := r.WithScore(0.55)

	if r.Score() != 0.4 {
		t.Errorf("original mutated: %f", r.Score())
	}
	if boosted.Score() != 0.55 {
		t.Errorf("boosted score = %f", boosted.Score())
	}
	if !boosted.IsVerified() {
		t.Error("payload lost on copy")
	}
}
