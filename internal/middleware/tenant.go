package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/circulation/internal/logger"
)

// DefaultTenantID is used when no X-Okapi-Tenant header is set.
const DefaultTenantID = "default"

const headerTenant = "X-Okapi-Tenant"

type tenantCtxKey struct{}

// Tenant is middleware that extracts the tenant from the X-Okapi-Tenant
// header and stores it in the request context. Falls back to DefaultTenantID.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := r.Header.Get(headerTenant)
		if tid == "" {
			tid = DefaultTenantID
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tid)))
	})
}

// WithTenant returns ctx carrying tenant id tid. Log records written with
// the context name the tenant too.
func WithTenant(ctx context.Context, tid string) context.Context {
	ctx = logger.WithTenant(ctx, tid)
	return context.WithValue(ctx, tenantCtxKey{}, tid)
}

// TenantFromContext returns the tenant stored in ctx, or DefaultTenantID if absent.
func TenantFromContext(ctx context.Context) string {
	if tid, ok := ctx.Value(tenantCtxKey{}).(string); ok {
		return tid
	}
	return DefaultTenantID
}
