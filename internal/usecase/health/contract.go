package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModeReporter reports whether the embedder runs the real model or the degraded fallback.
type ModeReporter interface {
	Mode() string
}

// ModeFunc adapts a function to ModeReporter.
type ModeFunc func() string

// Mode returns f().
func (f ModeFunc) Mode() string { return f() }
