package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiwatch/dashboard/internal/config"
)

func TestSetup_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dashboard.log")
	closer, err := Setup(config.LoggingConfig{Level: "info", Format: "json", ToFile: true, File: path, MaxSizeMB: 1}, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		log.SetOutput(os.Stdout)
		log.SetFormatter(&log.TextFormatter{})
	})

	log.WithField("op", "test").Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"op":"test"`)
}

func TestSetup_Levels(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	_, err := Setup(config.LoggingConfig{Level: "warn"}, false)
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	_, err = Setup(config.LoggingConfig{Level: "warn"}, true)
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	_, err = Setup(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestGinLogrusLogger_AssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stdout) })

	var seen string
	r := gin.New()
	r.Use(GinLogrusLogger())
	r.GET("/ping", func(c *gin.Context) {
		seen = GetGinRequestID(c)
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestGinLogrusRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { log.SetOutput(os.Stdout) })

	r := gin.New()
	r.Use(GinLogrusLogger(), GinLogrusRecovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, w.Body.String())
}
