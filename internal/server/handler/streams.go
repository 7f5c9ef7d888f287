package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/pipeline"
	"github.com/alanyoungcy/depthwatch/internal/render"
)

// RecentEvents serves the per-market event ring.
type RecentEvents interface {
	Recent(market string, n int) []domain.Event
}

// StreamControl exposes the running tailers.
type StreamControl interface {
	Status() []pipeline.StreamStatus
	ResetStream(key string) bool
}

// StreamHandler serves the market views.
type StreamHandler struct {
	views    domain.ViewCache
	recent   RecentEvents
	history  domain.SnapshotStore
	control  StreamControl
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewStreamHandler creates a StreamHandler. recent, history and control
// may be nil; their endpoints then answer 404 or 503.
func NewStreamHandler(
	views domain.ViewCache,
	recent RecentEvents,
	history domain.SnapshotStore,
	control StreamControl,
	renderer *render.Renderer,
	logger *slog.Logger,
) *StreamHandler {
	return &StreamHandler{
		views:    views,
		recent:   recent,
		history:  history,
		control:  control,
		renderer: renderer,
		logger:   logger.With(slog.String("handler", "streams")),
	}
}

// ListStreams lists cached markets and, when the engine runs in-process,
// the state of each tailer.
// GET /api/streams
func (h *StreamHandler) ListStreams(w http.ResponseWriter, r *http.Request) {
	markets, err := h.views.Markets(r.Context())
	if err != nil {
		h.internalError(r.Context(), w, "list markets", err)
		return
	}
	resp := map[string]any{"markets": markets}
	if h.control != nil {
		resp["streams"] = h.control.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBands returns the latest band snapshot with its rendered fields.
// GET /api/streams/{venue}/{symbol}/bands?mode=
func (h *StreamHandler) GetBands(w http.ResponseWriter, r *http.Request) {
	key, ok := marketParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown venue or empty symbol")
		return
	}
	mode, ok := modeParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be noncumulative or cumulative")
		return
	}
	snap, err := h.views.GetSnapshot(r.Context(), key.Market(), mode)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no snapshot for "+key.Market())
		return
	}
	if err != nil {
		h.internalError(r.Context(), w, "get snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"fields":   h.renderer.BandFields(domain.BandUpdate{Snapshot: snap}),
	})
}

// GetTop returns the latest top-N levels.
// GET /api/streams/{venue}/{symbol}/top
func (h *StreamHandler) GetTop(w http.ResponseWriter, r *http.Request) {
	key, ok := marketParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown venue or empty symbol")
		return
	}
	top, err := h.views.GetTop(r.Context(), key.Market())
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no top levels for "+key.Market())
		return
	}
	if err != nil {
		h.internalError(r.Context(), w, "get top", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"top":    top,
		"fields": h.renderer.TopFields(top),
	})
}

// GetRecent returns the newest buffered events, oldest first.
// GET /api/streams/{venue}/{symbol}/recent?limit=
func (h *StreamHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	key, ok := marketParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown venue or empty symbol")
		return
	}
	if h.recent == nil {
		writeError(w, http.StatusServiceUnavailable, "event buffer disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market": key.Market(),
		"events": h.recent.Recent(key.Market(), parseLimit(r)),
	})
}

// GetHistory returns persisted band updates, newest first.
// GET /api/streams/{venue}/{symbol}/history?mode=&limit=
func (h *StreamHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	key, ok := marketParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown venue or empty symbol")
		return
	}
	mode, ok := modeParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be noncumulative or cumulative")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot persistence disabled")
		return
	}
	snaps, err := h.history.ListRecent(r.Context(), key.Market(), mode, parseLimit(r))
	if err != nil {
		h.internalError(r.Context(), w, "list history", err)
		return
	}
	if snaps == nil {
		snaps = []domain.StoredSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"market": key.Market(), "snapshots": snaps})
}

// ResetStream rewinds one stream's tailer to the start of its log.
// POST /api/streams/{venue}/{symbol}/{channel}/reset
func (h *StreamHandler) ResetStream(w http.ResponseWriter, r *http.Request) {
	key, ok := marketParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown venue or empty symbol")
		return
	}
	key.Channel = domain.Channel(r.PathValue("channel"))
	if key.Channel != domain.ChannelBands && key.Channel != domain.ChannelDepth {
		writeError(w, http.StatusBadRequest, "channel must be bands or depth")
		return
	}
	if h.control == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running in this process")
		return
	}
	if !h.control.ResetStream(key.Key()) {
		writeError(w, http.StatusNotFound, "stream not tailed: "+key.Key())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"stream": key.Key(), "status": "reset requested"})
}

func (h *StreamHandler) internalError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	h.logger.ErrorContext(ctx, op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal server error")
}
