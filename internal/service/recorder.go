package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/ring"
)

// EventPattern matches every channel events are published on.
const EventPattern = "ch:*"

// Recorder keeps the most recent events of every market in a bounded ring.
// It is fed either directly as a Sink or from the signal bus via Run.
type Recorder struct {
	rings  *ring.Keyed[domain.Event]
	logger *slog.Logger
}

// NewRecorder creates a Recorder keeping capacity events per market.
func NewRecorder(capacity int, logger *slog.Logger) *Recorder {
	return &Recorder{
		rings:  ring.NewKeyed[domain.Event](capacity),
		logger: logger.With(slog.String("component", "recorder")),
	}
}

// Emit implements domain.Sink.
func (r *Recorder) Emit(_ context.Context, evt domain.Event) error {
	key, err := domain.ParseStreamKey(evt.Stream)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	r.rings.Get(key.Market()).Push(evt)
	return nil
}

// Recent returns up to n of the newest events for market, oldest first.
// n <= 0 returns everything retained.
func (r *Recorder) Recent(market string, n int) []domain.Event {
	buf, ok := r.rings.Lookup(market)
	if !ok {
		return []domain.Event{}
	}
	if n <= 0 {
		return buf.Items()
	}
	return buf.Last(n)
}

// Run records events from the bus until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context, bus domain.SignalBus) error {
	msgs, err := bus.Subscribe(ctx, EventPattern)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	r.logger.InfoContext(ctx, "recording events", slog.String("pattern", EventPattern))
	for msg := range msgs {
		var evt domain.Event
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			r.logger.WarnContext(ctx, "undecodable event",
				slog.String("channel", msg.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := r.Emit(ctx, evt); err != nil {
			r.logger.WarnContext(ctx, "event not recorded", slog.String("error", err.Error()))
		}
	}
	return ctx.Err()
}

var _ domain.Sink = (*Recorder)(nil)
