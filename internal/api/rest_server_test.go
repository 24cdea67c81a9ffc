package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/locator"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/annel0/blockpos/internal/middleware"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestServer(t *testing.T) (*RestServer, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	quiet := logging.NewWriterLogger("api", io.Discard, logging.ERROR)
	rs := NewRestServer(Config{
		Store:           store,
		Locator:         locator.New(store, nil, locator.WithLogger(quiet), locator.WithMaxRange(32)),
		Registry:        prometheus.NewRegistry(),
		HorizontalRange: 8,
		VerticalRange:   4,
		Logger:          quiet,
	})
	return rs, store
}

func do(t *testing.T, rs *RestServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	rs.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestPackUnpack(t *testing.T) {
	rs, _ := newTestServer(t)

	w := do(t, rs, http.MethodGet, "/api/pack?x=1&y=2&z=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[PackResponse](t, w)
	assert.Equal(t, blockpos.Pack(1, 2, 3), resp.Packed)
	assert.True(t, resp.Representable)

	w = do(t, rs, http.MethodGet, "/api/pack?x=40000000&y=0&z=0", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[PackResponse](t, w).Representable)

	w = do(t, rs, http.MethodGet, "/api/pack?x=1&y=2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, rs, http.MethodGet, "/api/unpack/-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, PosDTO{X: -1, Y: -1, Z: -1}, decode[PosDTO](t, w))

	w = do(t, rs, http.MethodGet, "/api/unpack/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlocksEndpoints(t *testing.T) {
	rs, store := newTestServer(t)

	w := do(t, rs, http.MethodPut, "/api/blocks/1,64,-1", `{"block": 4}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	id, err := store.Get(t.Context(), blockpos.NewPos(1, 64, -1))
	require.NoError(t, err)
	assert.Equal(t, storage.Water, id)

	w = do(t, rs, http.MethodGet, "/api/blocks/1,64,-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[BlockResponse](t, w)
	assert.Equal(t, PosDTO{X: 1, Y: 64, Z: -1}, resp.Pos)
	assert.Equal(t, storage.Water, resp.Block)

	w = do(t, rs, http.MethodPut, "/api/blocks/1,64,-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, rs, http.MethodGet, "/api/blocks/1,2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, rs, http.MethodPut, "/api/blocks/0,5000,0", `{"block": 1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestNearestEndpoint(t *testing.T) {
	rs, store := newTestServer(t)
	require.NoError(t, store.Set(t.Context(), blockpos.NewPos(2, 10, 0), storage.Ore))

	w := do(t, rs, http.MethodGet, "/api/nearest?pos=0,10,0&block=6", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[NearestResponse](t, w)
	require.True(t, resp.Found)
	assert.Equal(t, PosDTO{X: 2, Y: 10, Z: 0}, *resp.Pos)

	w = do(t, rs, http.MethodGet, "/api/nearest?pos=0,10,0&block=6&h=1&v=1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode[NearestResponse](t, w).Found)

	w = do(t, rs, http.MethodGet, "/api/nearest?pos=0,10,0&block=6&h=64", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, rs, http.MethodGet, "/api/nearest?pos=0,10,0&block=stone", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoxCountEndpoint(t *testing.T) {
	rs, store := newTestServer(t)
	ctx := t.Context()
	require.NoError(t, store.Set(ctx, blockpos.NewPos(0, 0, 0), storage.Sand))
	require.NoError(t, store.Set(ctx, blockpos.NewPos(3, 1, 0), storage.Sand))
	require.NoError(t, store.Set(ctx, blockpos.NewPos(9, 9, 9), storage.Sand))

	w := do(t, rs, http.MethodGet, "/api/box/count?from=0,0,0&to=4,1,0&block=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]int64{"count": 2}, decode[map[string]int64](t, w))

	w = do(t, rs, http.MethodGet, "/api/box/count?from=0,0,0&block=5", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, rs, http.MethodGet, "/api/box/count?from=-33554432,-2048,-33554432&to=33554431,2047,33554431&block=5", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestShellEndpoint(t *testing.T) {
	rs, _ := newTestServer(t)

	w := do(t, rs, http.MethodGet, "/api/shell?pos=0,0,0&x=1&y=1&z=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	points := decode[[]PosDTO](t, w)
	assert.Equal(t, []PosDTO{
		{0, 0, 0}, {-1, 0, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}, {0, 1, 0}, {1, 0, 0},
	}, points)

	w = do(t, rs, http.MethodGet, "/api/shell?pos=5,5,5&x=3&y=3&z=3&limit=4", "")
	require.Equal(t, http.StatusOK, w.Code)
	points = decode[[]PosDTO](t, w)
	require.Len(t, points, 4)
	assert.Equal(t, PosDTO{5, 5, 5}, points[0])

	w = do(t, rs, http.MethodGet, "/api/shell?pos=0,0,0&x=1000", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, rs, http.MethodGet, "/api/shell?pos=0,0,0&limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, q := range []string{"x=-1", "y=-2", "z=-3"} {
		w = do(t, rs, http.MethodGet, "/api/shell?pos=0,0,0&"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
	w = do(t, rs, http.MethodGet, "/api/nearest?pos=0,0,0&block=1&h=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddleware(t *testing.T) {
	rs, _ := newTestServer(t)

	w := do(t, rs, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(middleware.RequestIDHeader))

	w = do(t, rs, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blockpos_api_http_request_duration_seconds")
}

func TestRequestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	store := storage.NewMemoryStore()
	quiet := logging.NewWriterLogger("api", io.Discard, logging.ERROR)
	rs := NewRestServer(Config{
		Store:          store,
		Locator:        locator.New(store, nil, locator.WithLogger(quiet), locator.WithTracerProvider(tp)),
		TracerProvider: tp,
		Logger:         quiet,
	})

	w := do(t, rs, http.MethodGet, "/api/nearest?pos=0,0,0&block=1&h=1&v=1", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	search, request := spans[0], spans[1]
	assert.Equal(t, "locator.FindNearest", search.Name())
	assert.Equal(t, request.SpanContext().SpanID(), search.Parent().SpanID(), "поиск вложен в спан запроса")
	assert.Equal(t, request.SpanContext().TraceID(), search.SpanContext().TraceID())
}
