package department

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/department"
)

// Registry is a read-only department provider backed by static configuration.
// Department CRUD lives outside this service; the registry only answers lookups.
type Registry struct {
	mu    sync.RWMutex
	depts map[string]department.Config
}

// New creates a registry from the configured departments.
func New(depts []department.Config) *Registry {
	r := &Registry{depts: make(map[string]department.Config, len(depts))}
	for _, d := range depts {
		r.depts[key(d.TenantID, d.ID)] = d
	}
	return r
}

// Get returns the configuration of a tenant's department.
func (r *Registry) Get(_ context.Context, tenantID, departmentID string) (department.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.depts[key(tenantID, departmentID)]
	if !ok {
		return department.Config{}, fmt.Errorf("department %s/%s: %w", tenantID, departmentID, domain.ErrDepartmentNotFound)
	}
	return d, nil
}

// List returns the departments of a tenant ordered by id.
func (r *Registry) List(_ context.Context, tenantID string) []department.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]department.Config, 0)
	for _, d := range r.depts {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Put adds or replaces a department, used on config reload.
func (r *Registry) Put(d department.Config) {
	r.mu.Lock()
	r.depts[key(d.TenantID, d.ID)] = d
	r.mu.Unlock()
}

func key(tenantID, departmentID string) string {
	return tenantID + "/" + departmentID
}
