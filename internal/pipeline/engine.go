package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/depthwatch/internal/bands"
	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/metrics"
)

// EngineConfig selects the streams the engine follows and how their records
// are analysed.
type EngineConfig struct {
	Symbol string
	// Venues to follow. Empty means discover them from the log store.
	Venues       []domain.Venue
	Modes        []domain.Mode
	Filter       bands.Filter
	TopN         int
	PollInterval time.Duration
}

// FailureFunc is called when a stream stops with an error.
type FailureFunc func(ctx context.Context, stream domain.StreamKey, err error)

// Engine runs one Tailer per (venue, channel) stream of a symbol.
type Engine struct {
	cfg        EngineConfig
	store      domain.LogStore
	discoverer domain.VenueDiscoverer
	sink       domain.Sink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	onFailure  FailureFunc

	mu      sync.RWMutex
	tailers map[string]*Tailer
}

// NewEngine creates an Engine. discoverer may be nil when cfg.Venues is set.
func NewEngine(
	cfg EngineConfig,
	store domain.LogStore,
	discoverer domain.VenueDiscoverer,
	sink domain.Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      store,
		discoverer: discoverer,
		sink:       sink,
		metrics:    m,
		logger:     logger.With(slog.String("component", "engine")),
		tailers:    make(map[string]*Tailer),
	}
}

// OnStreamFailure registers fn to be called for every stream that fails.
func (e *Engine) OnStreamFailure(fn FailureFunc) {
	e.onFailure = fn
}

// Streams resolves the stream keys the engine will follow, discovering
// venues when none are configured.
func (e *Engine) Streams(ctx context.Context) ([]domain.StreamKey, error) {
	venues := slices.Clone(e.cfg.Venues)
	if len(venues) == 0 {
		if e.discoverer == nil {
			return nil, fmt.Errorf("pipeline: no venues configured for %s: %w", e.cfg.Symbol, domain.ErrNoStreams)
		}
		found, err := e.discoverer.DiscoverVenues(ctx, e.cfg.Symbol)
		if err != nil {
			return nil, fmt.Errorf("pipeline: discover venues for %s: %w", e.cfg.Symbol, err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("pipeline: no venues publish %s: %w", e.cfg.Symbol, domain.ErrNoStreams)
		}
		venues = found
	}

	streams := make([]domain.StreamKey, 0, 2*len(venues))
	for _, v := range venues {
		for _, ch := range []domain.Channel{domain.ChannelBands, domain.ChannelDepth} {
			streams = append(streams, domain.StreamKey{Venue: v, Symbol: e.cfg.Symbol, Channel: ch})
		}
	}
	return streams, nil
}

// Run starts a tailer per stream and blocks until ctx is cancelled or every
// stream has stopped. A stream that fails does not stop the others; Run
// returns an error only when all of them failed.
func (e *Engine) Run(ctx context.Context) error {
	streams, err := e.Streams(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	for _, s := range streams {
		proc := NewProcessor(s, ProcessorConfig{
			Modes:  e.cfg.Modes,
			Filter: e.cfg.Filter,
			TopN:   e.cfg.TopN,
		}, e.sink, e.metrics, e.logger.With(slog.String("stream", s.Key())))
		e.tailers[s.Key()] = NewTailer(s, e.store, proc, e.cfg.PollInterval, e.metrics, e.logger)
	}
	tailers := make([]*Tailer, 0, len(e.tailers))
	for _, t := range e.tailers {
		tailers = append(tailers, t)
	}
	e.mu.Unlock()

	e.logger.Info("engine starting",
		slog.String("symbol", e.cfg.Symbol),
		slog.Int("streams", len(tailers)),
		slog.Int("top_n", e.cfg.TopN),
	)

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		failed []error
	)
	for _, t := range tailers {
		g.Go(func() error {
			if err := t.Run(ctx); err != nil {
				e.logger.Error("stream failed",
					slog.String("stream", t.Stream().Key()),
					slog.String("error", err.Error()),
				)
				if e.onFailure != nil {
					e.onFailure(ctx, t.Stream(), err)
				}
				errMu.Lock()
				failed = append(failed, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 && len(failed) == len(tailers) {
		return fmt.Errorf("pipeline: all %d streams failed: %w", len(tailers), errors.Join(failed...))
	}
	e.logger.Info("engine stopped", slog.Int("failed_streams", len(failed)))
	return nil
}

// Tailer returns the tailer following key, if the engine is running it.
func (e *Engine) Tailer(key string) (*Tailer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tailers[key]
	return t, ok
}

// Tailers returns the running tailers ordered by stream key.
func (e *Engine) Tailers() []*Tailer {
	e.mu.RLock()
	out := make([]*Tailer, 0, len(e.tailers))
	for _, t := range e.tailers {
		out = append(out, t)
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Tailer) int {
		return cmp.Compare(a.Stream().Key(), b.Stream().Key())
	})
	return out
}

// StreamStatus is a point-in-time view of one tailer.
type StreamStatus struct {
	Stream    string `json:"stream"`
	State     string `json:"state"`
	Cursor    int64  `json:"cursor"`
	Processed int64  `json:"processed"`
	Skipped   int64  `json:"skipped"`
}

// Status reports every running tailer, ordered by stream key.
func (e *Engine) Status() []StreamStatus {
	tailers := e.Tailers()
	out := make([]StreamStatus, 0, len(tailers))
	for _, t := range tailers {
		processed, skipped := t.Stats()
		out = append(out, StreamStatus{
			Stream:    t.Stream().Key(),
			State:     t.State().String(),
			Cursor:    t.Position(),
			Processed: processed,
			Skipped:   skipped,
		})
	}
	return out
}

// ResetStream asks the tailer of key to replay its log from the start. It
// reports false when no such tailer runs.
func (e *Engine) ResetStream(key string) bool {
	t, ok := e.Tailer(key)
	if !ok {
		return false
	}
	t.Reset()
	e.logger.Info("stream reset requested", slog.String("stream", key))
	return true
}
