package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported by Check.
const (
	ComponentVectorIndex = "vector_index"
	ComponentDatabase    = "database"
	ComponentEmbedding   = "embedding"
	ComponentLLM         = "llm"
)

// ModeDegraded is the embedder mode that serves random vectors.
const ModeDegraded = "degraded"

const defaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status       Status
	Checks       map[string]CheckResult
	EmbedderMode string
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks  []check
	mode    ModeReporter
	timeout time.Duration
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding EmbeddingChecker) *Service {
	s := &Service{timeout: defaultCheckTimeout}
	s.checks = append(s.checks, check{ComponentVectorIndex, db.Ping})
	if embedding != nil {
		s.checks = append(s.checks, check{ComponentEmbedding, embedding.HealthCheck})
	}
	return s
}

// WithStore adds the relational store check.
func (s *Service) WithStore(store DBPinger) *Service {
	s.checks = append(s.checks, check{ComponentDatabase, store.Ping})
	return s
}

// WithLLM adds the language-model backend check.
func (s *Service) WithLLM(llm DBPinger) *Service {
	s.checks = append(s.checks, check{ComponentLLM, llm.Ping})
	return s
}

// WithEmbedderMode reports the embedder mode; a degraded embedder degrades the service.
func (s *Service) WithEmbedderMode(m ModeReporter) *Service {
	s.mode = m
	return s
}

// WithTimeout bounds each individual check.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	failed := 0

	for _, c := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.fn(cctx)
		cancel()
		if err != nil {
			checks[c.name] = CheckError
			failed++
		} else {
			checks[c.name] = CheckOK
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(s.checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	r := Report{Status: status, Checks: checks}
	if s.mode != nil {
		r.EmbedderMode = s.mode.Mode()
		if r.EmbedderMode == ModeDegraded && status == Healthy {
			r.Status = Degraded
		}
	}
	return r
}
