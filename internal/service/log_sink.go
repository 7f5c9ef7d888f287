package service

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/render"
)

// LogSink writes engine output to the log. In verbose mode each event is
// rendered as a display line at Info; otherwise a compact Debug record is
// written.
type LogSink struct {
	renderer *render.Renderer
	verbose  bool
	logger   *slog.Logger
}

func NewLogSink(r *render.Renderer, verbose bool, logger *slog.Logger) *LogSink {
	return &LogSink{renderer: r, verbose: verbose, logger: logger.With(slog.String("component", "output"))}
}

// Emit implements domain.Sink.
func (s *LogSink) Emit(ctx context.Context, evt domain.Event) error {
	switch {
	case evt.Bands != nil && s.verbose:
		s.logger.InfoContext(ctx, s.renderer.BandLine(evt.Stream, *evt.Bands))
	case evt.Bands != nil:
		s.logger.DebugContext(ctx, "band update",
			slog.String("stream", evt.Stream),
			slog.String("mode", string(evt.Bands.Snapshot.Mode)),
			slog.Float64("net", evt.Bands.Delta.Net),
		)
	case evt.Top != nil && s.verbose:
		s.logger.InfoContext(ctx, s.renderer.TopLine(evt.Stream, *evt.Top))
	case evt.Top != nil:
		s.logger.DebugContext(ctx, "top levels",
			slog.String("stream", evt.Stream),
			slog.Int("levels", len(evt.Top.Levels)),
		)
	}
	return nil
}

var _ domain.Sink = (*LogSink)(nil)
