package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinshin4n4n/tube-review-sub001/pkg/logger"
)

func TestCorrelationID(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
	}))

	t.Run("reuses caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlationHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(correlationHeader))
	})

	t.Run("generates when missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get(correlationHeader))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlationHeader, strings.Repeat("x", 200))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

func TestRequestLoggerAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	h := CorrelationID(RequestLogger(base)(AccessLog(Auth(stubValidator)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.FromContext(r.Context()).Info("inside handler")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("ok"))
		}),
	))))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", nil)
	req.Header.Set(correlationHeader, "corr-1")
	req.Header.Set("Authorization", "Bearer user-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var inner, access map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inner))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &access))

	assert.Equal(t, "inside handler", inner["msg"])
	assert.Equal(t, "corr-1", inner["correlation_id"])
	assert.Equal(t, "user-1", inner["user_id"])

	assert.Equal(t, "http request", access["msg"])
	assert.Equal(t, "INFO", access["level"])
	assert.Equal(t, float64(http.StatusCreated), access["status"])
	assert.Equal(t, float64(2), access["bytes"])
	assert.Equal(t, "corr-1", access["correlation_id"])
}

func TestAccessLog_ServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(base)(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestStatusRecorder(t *testing.T) {
	t.Run("first status wins", func(t *testing.T) {
		rec := newStatusRecorder(httptest.NewRecorder())
		rec.WriteHeader(http.StatusAccepted)
		rec.WriteHeader(http.StatusTeapot)
		assert.Equal(t, http.StatusAccepted, rec.status)
	})

	t.Run("implicit 200 on write", func(t *testing.T) {
		rec := newStatusRecorder(httptest.NewRecorder())
		n, err := rec.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, http.StatusOK, rec.status)
		assert.Equal(t, 5, rec.bytes)
	})

	t.Run("flush passes through", func(t *testing.T) {
		inner := httptest.NewRecorder()
		newStatusRecorder(inner).Flush()
		assert.True(t, inner.Flushed)
	})

	t.Run("hijack unsupported", func(t *testing.T) {
		_, _, err := newStatusRecorder(httptest.NewRecorder()).Hijack()
		assert.ErrorIs(t, err, http.ErrNotSupported)
	})

	t.Run("hijack supported", func(t *testing.T) {
		rec := newStatusRecorder(&hijackable{ResponseRecorder: httptest.NewRecorder()})
		_, _, err := rec.Hijack()
		assert.NoError(t, err)
	})

	t.Run("unwrap", func(t *testing.T) {
		inner := httptest.NewRecorder()
		assert.Same(t, inner, newStatusRecorder(inner).Unwrap())
	})
}

type hijackable struct {
	*httptest.ResponseRecorder
}

func (h *hijackable) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, nil
}
