package chi

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers. Tenancy is asserted by the caller; authentication happens upstream.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

// HeaderEmbeddingTokens carries the embedding tokens spent on a request.
const HeaderEmbeddingTokens = "X-Embedding-Tokens"

// DefaultTenant is used when a request carries no tenant header.
const DefaultTenant = "default"

type identityKey struct{}

// Identity is the caller scope attached to each API request.
type Identity struct {
	TenantID string
	UserID   string
}

// IdentityMiddleware resolves the tenant and user of a request.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			TenantID: strings.TrimSpace(r.Header.Get(HeaderTenantID)),
			UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		}
		if id.TenantID == "" {
			id.TenantID = DefaultTenant
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// IdentityFromContext returns the caller scope, falling back to the default tenant.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Identity{TenantID: DefaultTenant}
}
