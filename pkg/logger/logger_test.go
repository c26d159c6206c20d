package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_RequestIDAndSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	r := gin.New()
	r.Use(Middleware(log))
	r.GET("/v1/calls/:id", func(c *gin.Context) {
		if From(c.Request.Context()) != FromGin(c) {
			t.Errorf("expected same logger in request context and gin context")
		}
		c.Set("user_id", "alice")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/c1", nil)
	req.Header.Set(headerRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(headerRequestID); got != "rid-1" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["request_id"] != "rid-1" || line["path"] != "/v1/calls/:id" || line["user_id"] != "alice" {
		t.Fatalf("unexpected summary: %v", line)
	}
}

func TestMiddleware_HealthIsQuietInProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter("production", &buf)))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected generated request id")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no info log for health checks, got %q", buf.String())
	}
}
