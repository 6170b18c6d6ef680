package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "client id kept", header: "req-123.abc_Z", keep: true},
		{name: "missing", header: ""},
		{name: "too long", header: strings.Repeat("a", maxRequestIDLength+1)},
		{name: "header injection", header: "abc\r\nX-Evil: 1"},
		{name: "spaces", header: "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			r := gin.New()
			r.Use(RequestID())
			r.GET("/jobs/1", func(c *gin.Context) {
				seen = RequestIDFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/jobs/1", nil)
			if tt.header != "" {
				req.Header["X-Request-Id"] = []string{tt.header}
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-Id")
			if got != seen {
				t.Fatalf("header %q differs from context %q", got, seen)
			}
			if tt.keep {
				if got != tt.header {
					t.Fatalf("expected %q to be kept, got %q", tt.header, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected generated uuid, got %q", got)
			}
		})
	}
}
