package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/pipeline"
	"github.com/alanyoungcy/depthwatch/internal/render"
	"github.com/alanyoungcy/depthwatch/internal/server/handler"
)

type fakeViews struct {
	snaps map[string]domain.BandSnapshot
	tops  map[string]domain.TopLevels
}

func (f *fakeViews) SetSnapshot(context.Context, string, domain.BandSnapshot) error { return nil }
func (f *fakeViews) SetTop(context.Context, string, domain.TopLevels) error { return nil }

func (f *fakeViews) GetSnapshot(_ context.Context, market string, mode domain.Mode) (domain.BandSnapshot, error) {
	s, ok := f.snaps[market+"|"+string(mode)]
	if !ok {
		return domain.BandSnapshot{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeViews) GetTop(_ context.Context, market string) (domain.TopLevels, error) {
	t, ok := f.tops[market]
	if !ok {
		return domain.TopLevels{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeViews) Markets(context.Context) ([]string, error) {
	return []string{"spot:BTCUSDT"}, nil
}

type fakeRecent struct{ events []domain.Event }

func (f *fakeRecent) Recent(market string, n int) []domain.Event {
	if market != "spot:BTCUSDT" {
		return []domain.Event{}
	}
	return f.events[max(len(f.events)-n, 0):]
}

type fakeControl struct{ resets []string }

func (f *fakeControl) Status() []pipeline.StreamStatus {
	return []pipeline.StreamStatus{{Stream: "spot:BTCUSDT:bands", State: "polling", Cursor: 7}}
}

func (f *fakeControl) ResetStream(key string) bool {
	if key != "spot:BTCUSDT:bands" {
		return false
	}
	f.resets = append(f.resets, key)
	return true
}

func newTestServer(t *testing.T, apiKey string, checks map[string]handler.Check) (*Server, *fakeControl) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	views := &fakeViews{
		snaps: map[string]domain.BandSnapshot{
			"spot:BTCUSDT|noncumulative": {
				Stream: "spot:BTCUSDT:bands",
				Mode:   domain.ModeNonCumulative,
				Bands: []domain.BandMetrics{
					{Band: "0-1", Bid: 10, Ask: 5, Ratio: 0.5, ImbalancePct: 33.33, Predicted: domain.PredictBid},
				},
			},
		},
		tops: map[string]domain.TopLevels{
			"spot:BTCUSDT": {Stream: "spot:BTCUSDT:depth", N: 1, Levels: []domain.PriceLevel{
				{Price: "101.0", Quantity: 3, Side: domain.SideAsk},
			}},
		},
	}
	recent := &fakeRecent{events: []domain.Event{
		{ID: "1", Kind: domain.EventTop, Stream: "spot:BTCUSDT:depth"},
		{ID: "2", Kind: domain.EventTop, Stream: "spot:BTCUSDT:depth"},
		{ID: "3", Kind: domain.EventBands, Stream: "spot:BTCUSDT:bands"},
	}}
	control := &fakeControl{}
	r := render.New(render.Options{Display: render.DisplayBoth, PricePrecision: 1, SizePrecision: 2})
	if checks == nil {
		checks = map[string]handler.Check{"redis": func(context.Context) error { return nil }}
	}
	srv := NewServer(Config{APIKey: apiKey}, Handlers{
		Health:  handler.NewHealthHandler(checks, logger),
		Streams: handler.NewStreamHandler(views, recent, nil, control, r, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("depthwatch_records_processed_total 1\n"))
		}),
	}, nil, logger)
	return srv, control
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestServer_ListStreams(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	rec, body := do(t, srv.Handler(), http.MethodGet, "/api/streams", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"spot:BTCUSDT"}, body["markets"])
	streams := body["streams"].([]any)
	require.Len(t, streams, 1)
	assert.Equal(t, "polling", streams[0].(map[string]any)["state"])
}

func TestServer_GetBands(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	t.Run("default mode", func(t *testing.T) {
		rec, body := do(t, srv.Handler(), http.MethodGet, "/api/streams/spot/BTCUSDT/bands", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		fields := body["fields"].([]any)
		assert.Contains(t, fields, map[string]any{"key": "0-1_bid", "value": "10.00"})
		assert.Contains(t, fields, map[string]any{"key": "0-1_pred", "value": "bid"})
	})

	t.Run("missing mode", func(t *testing.T) {
		rec, _ := do(t, srv.Handler(), http.MethodGet, "/api/streams/spot/BTCUSDT/bands?mode=cumulative", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad mode", func(t *testing.T) {
		rec, _ := do(t, srv.Handler(), http.MethodGet, "/api/streams/spot/BTCUSDT/bands?mode=both", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad venue", func(t *testing.T) {
		rec, _ := do(t, srv.Handler(), http.MethodGet, "/api/streams/margin/BTCUSDT/bands", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_GetTop(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	rec, body := do(t, srv.Handler(), http.MethodGet, "/api/streams/spot/BTCUSDT/top", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{map[string]any{"key": "ask@101.0", "value": "3.00"}}, body["fields"])

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/api/streams/futures/BTCUSDT/top", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetRecent(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	rec, body := do(t, srv.Handler(), http.MethodGet, "/api/streams/spot/BTCUSDT/recent?limit=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	events := body["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].(map[string]any)["id"])
	assert.Equal(t, "3", events[1].(map[string]any)["id"])
}

func TestServer_HistoryWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	rec, _ := do(t, srv.Handler(), http.MethodGet, "/api/streams/spot/BTCUSDT/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_ResetStream(t *testing.T) {
	srv, control := newTestServer(t, "", nil)

	rec, _ := do(t, srv.Handler(), http.MethodPost, "/api/streams/spot/BTCUSDT/bands/reset", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"spot:BTCUSDT:bands"}, control.resets)

	rec, _ = do(t, srv.Handler(), http.MethodPost, "/api/streams/spot/BTCUSDT/depth/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodPost, "/api/streams/spot/BTCUSDT/trades/reset", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv, _ := newTestServer(t, "", nil)
		rec, body := do(t, srv.Handler(), http.MethodGet, "/api/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("degraded", func(t *testing.T) {
		srv, _ := newTestServer(t, "", map[string]handler.Check{
			"redis":    func(context.Context) error { return nil },
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		})
		rec, body := do(t, srv.Handler(), http.MethodGet, "/api/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", body["status"])
		deps := body["dependencies"].(map[string]any)
		assert.Equal(t, "ok", deps["redis"])
		assert.Equal(t, "connection refused", deps["postgres"])
	})
}

func TestServer_Auth(t *testing.T) {
	srv, _ := newTestServer(t, "secret", nil)
	h := srv.Handler()

	rec, _ := do(t, h, http.MethodGet, "/api/streams", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/streams", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/streams", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/streams", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "depthwatch_records_processed_total")
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, "secret", nil)
	rec, _ := do(t, srv.Handler(), http.MethodOptions, "/api/streams", map[string]string{"Origin": "http://localhost:3000"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_StartShutdown(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	srv.httpServer.Addr = "127.0.0.1:0"

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)
}
