package logging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "console")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "json")
	assert.Error(t, err)
	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestMiddlewareAssignsTraceID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var seen string
	h := Middleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = TraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "/api/dashboard", fields["path"])
	assert.Equal(t, seen, fields["trace_id"])
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	With(context.Background(), l).Info("plain")
	With(ContextWithTraceID(context.Background(), "abc"), l).Info("traced")

	all := logs.All()
	require.Len(t, all, 2)
	assert.NotContains(t, all[0].ContextMap(), "trace_id")
	assert.Equal(t, "abc", all[1].ContextMap()["trace_id"])
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		secret string
	}{
		{"bearer", `Authorization: Bearer 1234~AbCdEf`, "1234~AbCdEf"},
		{"query token", `GET https://c.edu/api/v1/courses?access_token=zzz123&page=2`, "zzz123"},
		{"api key param", `apiKey=supersecret`, "supersecret"},
		{"json", `{"url":"https://c.edu","apiKey":"hunter2"}`, "hunter2"},
		{"conn string", `dial postgres://app:pw123@db:5432/x failed`, "pw123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := SanitizeString(tt.in)
			assert.NotContains(t, out, tt.secret)
			assert.Contains(t, out, RedactedText)
		})
	}

	assert.Equal(t, "", SanitizeError(nil))
	assert.Equal(t, "canvas: /api/v1/courses failed: status=403", SanitizeError(errors.New("canvas: /api/v1/courses failed: status=403")))
}

func TestSanitizeURL(t *testing.T) {
	out := SanitizeURL("https://user:pw@canvas.example.edu/api/v1/courses?page=2&access_token=abc")
	assert.NotContains(t, out, "pw")
	assert.NotContains(t, out, "abc")
	assert.Contains(t, out, "page=2")
	assert.Equal(t, "https://canvas.example.edu/x?page=1", SanitizeURL("https://canvas.example.edu/x?page=1"))
}
