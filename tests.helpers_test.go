package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCreateLogFilePath(t *testing.T) {
	ts := time.Date(2023, 7, 2, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, filepath.Join("logs", "20230702.090503.prod.log"), CreateLogFilePath("logs", true, ts))
	assert.Equal(t, filepath.Join("logs", "20230702.090503.dev.log"), CreateLogFilePath("logs", false, ts))
}

func TestRSyncWrite(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "logs")
	clock := NewMockClocker()
	rsw := NewRSyncWriter(&Config{LogFolder: folder, LogMaxSize: 1}, clock)
	defer rsw.Close()

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	n, err := rsw.Write(chunk)
	require.NoError(t, err)
	assert.Equal(t, len(chunk), n)

	// the second chunk does not fit in the first file.
	clock.MockNow = clock.MockNow.Add(time.Second)
	_, err = rsw.Write(chunk)
	require.NoError(t, err)
	require.NoError(t, rsw.Sync())

	files, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = rsw.Write(bytes.Repeat([]byte("x"), megabyte+1))
	assert.Error(t, err)

	require.NoError(t, rsw.Close())
	require.NoError(t, rsw.Close())
}

func TestSetupLogging(t *testing.T) {
	config := &Config{
		IsProduction: true,
		LogLevel:     zapcore.InfoLevel,
		LogFolder:    filepath.Join(t.TempDir(), "logs"),
		LogMaxSize:   1,
		GitCommit:    "abc123",
	}
	clock := NewMockClocker()
	rsw := NewRSyncWriter(config, clock)
	defer rsw.Close()
	logger, flusher := SetupLogging(config, rsw, NewTickClock(clock))

	logger.Debug("hidden")
	logger.Info("book created", zap.Int64("book.id", 1))
	require.NoError(t, flusher())

	data, err := os.ReadFile(CreateLogFilePath(config.LogFolder, true, clock.Now()))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	entry := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "book created", entry["msg"])
	assert.Equal(t, "info", entry["lvl"])
	assert.Equal(t, "abc123", entry["app.commit"])
	assert.Equal(t, float64(1), entry["book.id"])
	assert.Equal(t, "2023-07-02T00:00:00.000Z", entry["ts"])
}

func TestGetLoggerFromContext(t *testing.T) {
	api := newTestAPIHandler(nil)
	assert.Same(t, api.logger, api.GetLoggerFromContext(context.Background()))

	scoped := zap.NewNop().With(zap.String("request.id", "r:test"))
	ctx := context.WithValue(context.Background(), LoggerContextKey, scoped)
	assert.Same(t, scoped, api.GetLoggerFromContext(ctx))
}

func TestGetRequestSourceIP(t *testing.T) {
	testCases := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"real ip header", map[string]string{"X-REAL-IP": "10.1.1.1"}, "192.0.2.1:1234", "10.1.1.1"},
		{"first valid forwarded ip", map[string]string{"X-FORWARDED-FOR": "bogus, 10.2.2.2, 10.3.3.3"}, "192.0.2.1:1234", "10.2.2.2"},
		{"remote address", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"invalid remote address", nil, "somewhere", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.expected, GetRequestSourceIP(r))
		})
	}
}

func TestIDsHandler(t *testing.T) {
	idh := NewIDsHandler()
	id := idh.Generate(RequestIDPrefix)
	assert.True(t, strings.HasPrefix(id, "r:"))
	assert.True(t, idh.IsValid(id, RequestIDPrefix))
	assert.NotEqual(t, id, idh.Generate(RequestIDPrefix))

	assert.False(t, idh.IsValid("", RequestIDPrefix))
	assert.False(t, idh.IsValid("r:not-a-uuid", RequestIDPrefix))
}

func TestCustomResponseWriter(t *testing.T) {
	t.Run("implicit status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		cw := NewCustomResponseWriter(rec)
		_, err := cw.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, cw.Status())
		assert.Equal(t, 5, cw.Bytes())
		assert.Same(t, rec, cw.Unwrap())
	})

	t.Run("first status wins", func(t *testing.T) {
		rec := httptest.NewRecorder()
		cw := NewCustomResponseWriter(rec)
		cw.WriteHeader(http.StatusCreated)
		cw.WriteHeader(http.StatusInternalServerError)
		assert.Equal(t, http.StatusCreated, cw.Status())
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestGetValueFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDContextKey, "r:test")
	assert.Equal(t, "r:test", GetValueFromContext(ctx, RequestIDContextKey))
	assert.Equal(t, "", GetValueFromContext(context.Background(), RequestIDContextKey))
	assert.Equal(t, uint64(0), GetRequestNumberFromContext(ctx))
}
