package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/user"
)

const (
	headerUserID      = "X-Okapi-User-Id"
	headerPermissions = "X-Okapi-Permissions"
)

type operatorCtxKey struct{}

// Operator resolves the staff operator from the gateway headers. The
// permission header is a JSON array of permission names.
func Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var perms []string
		if raw := r.Header.Get(headerPermissions); raw != "" {
			if err := json.Unmarshal([]byte(raw), &perms); err != nil {
				http.Error(w, `{"error":"invalid X-Okapi-Permissions header"}`, http.StatusBadRequest)
				return
			}
		}

		op := user.Operator{
			ID:          r.Header.Get(headerUserID),
			TenantID:    TenantFromContext(r.Context()),
			Permissions: override.NewCapabilities(perms...),
		}
		if op.ID == "" {
			op.ID = user.Anonymous.ID
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
	})
}

// WithOperator returns ctx carrying op.
func WithOperator(ctx context.Context, op user.Operator) context.Context {
	return context.WithValue(ctx, operatorCtxKey{}, op)
}

// OperatorFromContext returns the operator stored in ctx, or user.Anonymous.
func OperatorFromContext(ctx context.Context) user.Operator {
	if op, ok := ctx.Value(operatorCtxKey{}).(user.Operator); ok {
		return op
	}
	return user.Anonymous
}

// RequirePermission returns middleware that rejects operators lacking perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !OperatorFromContext(r.Context()).Can(perm) {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
