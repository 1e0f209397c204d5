package filter

import "fmt"

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Payload field names every vector record is filterable by.
const (
	FieldTenantID     = "tenant_id"
	FieldDepartmentID = "department_id"
	FieldDocumentID   = "document_id"
	FieldSourceType   = "source_type"
)

// Expression is a conjunction of exact tag matches with optional exclusions.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Scope builds the mandatory tenant+department filter applied to every retrieval.
func Scope(tenantID, departmentID string) (Expression, error) {
	tenant, err := NewMatch(FieldTenantID, tenantID)
	if err != nil {
		return Expression{}, err
	}
	dept, err := NewMatch(FieldDepartmentID, departmentID)
	if err != nil {
		return Expression{}, err
	}
	return Expression{must: []Condition{tenant, dept}}, nil
}

// DocumentScope matches every record of one document of one tenant.
func DocumentScope(tenantID, documentID string) (Expression, error) {
	tenant, err := NewMatch(FieldTenantID, tenantID)
	if err != nil {
		return Expression{}, err
	}
	doc, err := NewMatch(FieldDocumentID, documentID)
	if err != nil {
		return Expression{}, err
	}
	return Expression{must: []Condition{tenant, doc}}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// Matches evaluates the expression against a flat field map.
func (e Expression) Matches(fields map[string]string) bool {
	for _, c := range e.must {
		if fields[c.key] != c.match {
			return false
		}
	}
	for _, c := range e.mustNot {
		if fields[c.key] == c.match {
			return false
		}
	}
	return true
}

// Condition is a single exact tag match.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }
