package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/circulation/internal/logger"
)

func TestResponseWriterFlush(t *testing.T) {
	inner := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: inner, status: http.StatusOK}

	// responseWriter must satisfy http.Flusher.
	f, ok := http.ResponseWriter(rw).(http.Flusher)
	if !ok {
		t.Fatal("responseWriter does not implement http.Flusher")
	}

	f.Flush()

	if !inner.Flushed {
		t.Fatal("expected inner ResponseRecorder to be flushed")
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rw.WriteHeader(http.StatusUnprocessableEntity)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rw.status)
	}
	if rw.Unwrap() == nil {
		t.Fatal("Unwrap returned nil")
	}
}

func TestLoggerRecordsRequest(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	req := httptest.NewRequest(http.MethodPost, "/circulation/renew-by-barcode", nil)
	req = req.WithContext(logger.WithTenant(logger.WithRequestID(req.Context(), "req-1"), "diku"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v (%s)", err, buf.String())
	}
	if rec["status"] != float64(http.StatusConflict) || rec["request_id"] != "req-1" || rec["tenant"] != "diku" {
		t.Errorf("unexpected record %v", rec)
	}
	if rec["route"] != "/circulation/renew-by-barcode" {
		t.Errorf("route without a router = %v", rec["route"])
	}
}

func TestLoggerUsesRoutePatternAndQuietsHealth(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := chi.NewRouter()
	r.Use(Logger)
	r.Get("/health", func(http.ResponseWriter, *http.Request) {})
	r.Get("/circulation/requests/queue/item/{itemId}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if buf.Len() != 0 {
		t.Fatalf("health check logged at info: %s", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/circulation/requests/queue/item/i-7", http.NoBody))
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v (%s)", err, buf.String())
	}
	if rec["route"] != "/circulation/requests/queue/item/{itemId}" || rec["path"] != "/circulation/requests/queue/item/i-7" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS("http://localhost:3000")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight reached the handler")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/circulation/requests", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}
