package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/circulation/internal/domain/user"
	"github.com/Strob0t/circulation/internal/middleware"
)

func TestOperatorFromHeaders(t *testing.T) {
	var got user.Operator
	handler := middleware.Tenant(middleware.Operator(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.OperatorFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.Header.Set("X-Okapi-Tenant", "diku")
	req.Header.Set("X-Okapi-User-Id", "staff-1")
	req.Header.Set("X-Okapi-Permissions", `["circulation.override-patron-block","circulation.all"]`)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.ID != "staff-1" || got.TenantID != "diku" {
		t.Fatalf("unexpected operator %+v", got)
	}
	if !got.Can("circulation.override-patron-block") || got.Can("circulation.override-item-limit-block") {
		t.Errorf("permissions = %v", got.Permissions.List())
	}
}

func TestOperatorAnonymous(t *testing.T) {
	var got user.Operator
	handler := middleware.Operator(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.OperatorFromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got.ID != user.Anonymous.ID || len(got.Permissions) != 0 {
		t.Fatalf("unexpected operator %+v", got)
	}
}

func TestOperatorRejectsMalformedPermissions(t *testing.T) {
	called := false
	handler := middleware.Operator(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.Header.Set("X-Okapi-Permissions", "circulation.all")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called || rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, handler called = %v", rec.Code, called)
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name  string
		perms string
		want  int
	}{
		{"granted", `["circulation.requests.queue.reorder.collection.post"]`, http.StatusOK},
		{"missing", `["circulation.requests.item.post"]`, http.StatusForbidden},
		{"no header", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
			handler := middleware.Operator(middleware.RequirePermission("circulation.requests.queue.reorder.collection.post")(inner))

			req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
			if tt.perms != "" {
				req.Header.Set("X-Okapi-Permissions", tt.perms)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
