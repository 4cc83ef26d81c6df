package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestID_PropagatesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())

	var fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromCtx = getRequestID(c.Request.Context())
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", fromCtx)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRequestID_Generated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestGetRequestID_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", getRequestID(context.Background()))
	assert.Equal(t, "unknown", RequestIDField(context.Background()).String)
}

func TestInitializeWithWriter_TeesJSON(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	var buf bytes.Buffer
	l := InitializeWithWriter("production", &buf)

	l.Info("Order created", RequestIDField(WithContext(context.Background(), "abc")))
	_ = l.Sync()

	assert.Contains(t, buf.String(), `"msg":"Order created"`)
	assert.Contains(t, buf.String(), `"request_id":"abc"`)
}
