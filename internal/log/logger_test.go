package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentApp, Output: &buf}), &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLogger_StampsComponent(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	logger.WithComponent(ComponentAMQP).Info("connected", "queue", "price_recorded")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=amqp")
	assert.Contains(t, out, "queue=price_recorded")
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, ComponentApp, logger.Component())
}

func TestFields(t *testing.T) {
	f := NewFields().
		WithOwner("u1").
		WithPriceEntry("e1", "p1", decimal.RequireFromString("2.5"), "").
		WithPeriod(2025, 9).
		WithError(nil).
		WithRequestID("")

	assert.Equal(t, "u1", f[FieldOwnerID])
	assert.Equal(t, "2.50", f[FieldPrice])
	assert.Equal(t, 2025, f[FieldYear])
	assert.NotContains(t, f, FieldStore)
	assert.NotContains(t, f, FieldError)
	assert.NotContains(t, f, FieldRequestID)
	assert.Len(t, f.ToSlice(), len(f)*2)
}

func TestMiddleware_RequestLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "handled")
		}),
	))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Contains(t, buf.String(), "request_id=req_1")
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, ComponentApp, l.Component())
}

func TestStructuredLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	sl := NewStructuredLogger(logger)
	req := httptest.NewRequest(http.MethodPost, "/api/products?x=1", nil)

	sl.LogHTTPEnd(context.Background(), req, http.StatusServiceUnavailable, 12, "10.0.0.1")
	sl.LogPriceExported(context.Background(), "u1", "e1", "p1", "2025 Prices!A2:G2")
	sl.LogError(context.Background(), "export failed", errors.New("boom"), ComponentSheets, OpExport, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "level=ERROR")
	assert.Contains(t, lines[0], "status_code=503")
	assert.Contains(t, lines[0], "component=http")
	assert.Contains(t, lines[1], "entry_id=e1")
	assert.Contains(t, lines[2], "error=boom")
	assert.Contains(t, lines[2], "component=sheets")
}
