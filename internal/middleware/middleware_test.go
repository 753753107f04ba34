package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/osvaldoandrade/flowdb/pkg/auth"
	"github.com/osvaldoandrade/flowdb/pkg/auth/static"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, validator auth.Validator, logBuf *bytes.Buffer) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggerMiddleware(logger), TracingMiddleware(""))
	r.DELETE("/flows/:id", AdminAuthMiddleware(validator), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c.Request.Context()))
	})
	return r
}

func TestAdminAuthMiddleware(t *testing.T) {
	admin, err := static.NewValidatorFromJSON(json.RawMessage(`"secret"`))
	if err != nil {
		t.Fatal(err)
	}
	reader, err := static.NewValidatorFromJSON(json.RawMessage(`{"token":"reader","scopes":["flowdb:read"]}`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		validator auth.Validator
		header    string
		want      int
	}{
		{"valid admin", admin, "Bearer secret", http.StatusNoContent},
		{"lowercase scheme", admin, "bearer secret", http.StatusNoContent},
		{"missing header", admin, "", http.StatusUnauthorized},
		{"bad format", admin, "Token secret", http.StatusUnauthorized},
		{"wrong token", admin, "Bearer nope", http.StatusUnauthorized},
		{"not admin", reader, "Bearer reader", http.StatusForbidden},
		{"no validator", nil, "Bearer secret", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := newRouter(t, tt.validator, &buf)
			req := httptest.NewRequest(http.MethodDelete, "/flows/f1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRequestIDAndLogging(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(t, nil, &buf)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "req-42" || w.Body.String() != "req-42" {
		t.Errorf("request id not propagated: header=%q body=%q", w.Header().Get("X-Request-Id"), w.Body.String())
	}
	line := buf.String()
	if !strings.Contains(line, `"request_id":"req-42"`) || !strings.Contains(line, `"status":200`) {
		t.Errorf("unexpected log line: %s", line)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("expected generated request id")
	}
}
