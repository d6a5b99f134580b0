package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(RequestLogger(l))
	r.GET("/ws/socket_server", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/socket_server?session_id=s1", nil)
	req.Header.Set("X-Request-Id", "req-1")
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "req-1" {
		t.Fatalf("request id header = %q", w.Header().Get("X-Request-Id"))
	}
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel {
		t.Fatalf("entry = %+v", e)
	}
	if e.Data["session_id"] != "s1" || e.Data["status"] != http.StatusBadRequest || e.Data["request_id"] != "req-1" {
		t.Fatalf("fields = %v", e.Data)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id must be generated")
	}
	if hook.LastEntry().Level != logrus.InfoLevel {
		t.Fatalf("level = %v", hook.LastEntry().Level)
	}
}
