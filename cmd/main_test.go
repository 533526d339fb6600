package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/UnknownOlympus/selene/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	testCases := []struct {
		env      string
		level    slog.Level
		disabled slog.Level
	}{
		{env: envLocal, level: slog.LevelDebug},
		{env: envDev, level: slog.LevelInfo, disabled: slog.LevelDebug},
		{env: envProd, level: slog.LevelWarn, disabled: slog.LevelInfo},
		{env: "unknown", level: slog.LevelError, disabled: slog.LevelWarn},
	}

	for _, tc := range testCases {
		t.Run(tc.env, func(t *testing.T) {
			var buf bytes.Buffer
			logger := setupLogger(tc.env, &buf)

			assert.True(t, logger.Enabled(t.Context(), tc.level))
			if tc.env != envLocal {
				assert.False(t, logger.Enabled(t.Context(), tc.disabled))
			}
		})
	}
}

func TestSetupLogger_ProductionDropsTime(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(envProd, &buf)

	logger.Warn("device unreachable")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "device unreachable", entry["msg"])
	assert.NotContains(t, entry, slog.TimeKey)
}

func TestSetupLogger_UnknownEnvWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	setupLogger("staging", &buf)

	assert.Contains(t, buf.String(), "available_envs")
}

func TestLogOutput(t *testing.T) {
	assert.Equal(t, io.Writer(os.Stdout), logOutput(""))

	path := filepath.Join(t.TempDir(), "selene.log")
	out := logOutput(path)
	_, err := out.Write([]byte("rotated line\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rotated line\n", string(data))
}

func TestMonitoringHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(reg)
	appMetrics.EventsReceived.WithLabelValues("appmessage").Inc()

	handler := monitoringHandler(t.Context(), logger, reg)

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `selene_events_received_total{event="appmessage"} 1`)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
