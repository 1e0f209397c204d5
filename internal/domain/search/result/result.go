package result

import "github.com/kailas-cloud/knowledgeops/internal/domain/record"

// Result is a single retrieval hit. Ephemeral, produced fresh per query.
type Result struct {
	id      string
	score   float64
	payload record.Payload
}

// New creates a retrieval result.
func New(id string, score float64, payload record.Payload) Result {
	return Result{id: id, score: score, payload: payload}
}

// ID returns the vector record identifier.
func (r *Result) ID() string { return r.id }

// Score returns the relevance score in [0, 1].
func (r *Result) Score() float64 { return r.score }

// Content returns the (possibly truncated) passage text.
func (r *Result) Content() string { return r.payload.Content }

// Title returns the source document title.
func (r *Result) Title() string { return r.payload.Title }

// DocumentID returns the source document identifier.
func (r *Result) DocumentID() string { return r.payload.DocumentID }

// ChunkIndex returns the passage position inside its document.
func (r *Result) ChunkIndex() int { return r.payload.ChunkIndex }

// SourceType reports whether the hit is a document passage or a verified answer.
func (r *Result) SourceType() record.SourceType { return r.payload.SourceType }

// TenantID returns the owning tenant.
func (r *Result) TenantID() string { return r.payload.TenantID }

// DepartmentID returns the owning department.
func (r *Result) DepartmentID() string { return r.payload.DepartmentID }

// IsVerified reports whether the hit is a human-approved answer.
func (r *Result) IsVerified() bool { return r.payload.SourceType == record.SourceVerifiedAnswer }

// WithScore returns a copy with the score replaced.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}
