// Package service holds the sinks that move engine output to its consumers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// Publisher stores every event in the view cache, optionally persists band
// updates, and broadcasts the event on the signal bus.
type Publisher struct {
	views     domain.ViewCache
	bus       domain.SignalBus
	snapshots domain.SnapshotStore
	logger    *slog.Logger
}

// NewPublisher creates a Publisher. snapshots may be nil to skip
// persistence.
func NewPublisher(views domain.ViewCache, bus domain.SignalBus, snapshots domain.SnapshotStore, logger *slog.Logger) *Publisher {
	return &Publisher{
		views:     views,
		bus:       bus,
		snapshots: snapshots,
		logger:    logger.With(slog.String("component", "publisher")),
	}
}

// EventStream returns the durable stream that keeps a market's events.
func EventStream(market string) string {
	return "events:" + market
}

// Emit implements domain.Sink. Cache and persistence failures fail the
// event; bus failures are logged only.
func (p *Publisher) Emit(ctx context.Context, evt domain.Event) error {
	key, err := domain.ParseStreamKey(evt.Stream)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	market := key.Market()

	switch evt.Kind {
	case domain.EventBands:
		if evt.Bands == nil {
			return fmt.Errorf("publisher: %s: bands event without payload", evt.Stream)
		}
		if err := p.views.SetSnapshot(ctx, market, evt.Bands.Snapshot); err != nil {
			return fmt.Errorf("publisher: cache snapshot %s: %w", market, err)
		}
		if p.snapshots != nil {
			if err := p.snapshots.Insert(ctx, key, *evt.Bands); err != nil {
				return fmt.Errorf("publisher: persist snapshot %s: %w", market, err)
			}
		}
	case domain.EventTop:
		if evt.Top == nil {
			return fmt.Errorf("publisher: %s: top event without payload", evt.Stream)
		}
		if err := p.views.SetTop(ctx, market, *evt.Top); err != nil {
			return fmt.Errorf("publisher: cache top %s: %w", market, err)
		}
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("publisher: marshal event %s: %w", evt.ID, err)
	}
	if err := p.bus.Publish(ctx, evt.Channel(), data); err != nil {
		p.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", evt.Channel()),
			slog.String("error", err.Error()),
		)
	}
	if err := p.bus.StreamAppend(ctx, EventStream(market), data); err != nil {
		p.logger.WarnContext(ctx, "append event failed",
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

var _ domain.Sink = (*Publisher)(nil)
