package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/notify"
)

// Alerts is the delivery side of the alerter.
type Alerts interface {
	Notify(ctx context.Context, event, title, message string) error
}

// AlerterConfig configures imbalance alerts.
type AlerterConfig struct {
	// Threshold is the absolute imbalance percentage that triggers an alert.
	// Zero disables imbalance alerts.
	Threshold float64
	// Band is the band watched; empty means the nearest band.
	Band     string
	Cooldown time.Duration
}

// Alerter raises an alert when a band's imbalance crosses the threshold, at
// most once per cooldown per stream and mode, and reports stream failures.
type Alerter struct {
	alerts Alerts
	cfg    AlerterConfig
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

func NewAlerter(alerts Alerts, cfg AlerterConfig, logger *slog.Logger) *Alerter {
	if cfg.Band == "" {
		cfg.Band = domain.Bands[0]
	}
	return &Alerter{
		alerts: alerts,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "alerter")),
		last:   make(map[string]time.Time),
	}
}

// Emit implements domain.Sink. Delivery failures are logged, never returned.
func (a *Alerter) Emit(ctx context.Context, evt domain.Event) error {
	if a.cfg.Threshold <= 0 || evt.Bands == nil {
		return nil
	}
	snap := evt.Bands.Snapshot
	m, ok := snap.Band(a.cfg.Band)
	if !ok || math.Abs(m.ImbalancePct) < a.cfg.Threshold {
		return nil
	}

	key := evt.Stream + "|" + string(snap.Mode)
	now := a.now()
	a.mu.Lock()
	if last, seen := a.last[key]; seen && now.Sub(last) < a.cfg.Cooldown {
		a.mu.Unlock()
		return nil
	}
	a.last[key] = now
	a.mu.Unlock()

	title := fmt.Sprintf("Imbalance %s %s", evt.Stream, a.cfg.Band)
	msg := fmt.Sprintf("%s imbalance %.2f%% (bid %g / ask %g), pressure %s",
		snap.Mode, m.ImbalancePct, m.Bid, m.Ask, m.Predicted)
	if err := a.alerts.Notify(ctx, notify.EventImbalance, title, msg); err != nil {
		a.logger.WarnContext(ctx, "imbalance alert failed", slog.String("error", err.Error()))
	}
	return nil
}

// StreamFailed reports a stream that stopped with err.
func (a *Alerter) StreamFailed(ctx context.Context, stream domain.StreamKey, err error) {
	if nerr := a.alerts.Notify(ctx, notify.EventStreamFailed, "Stream failed "+stream.Key(), err.Error()); nerr != nil {
		a.logger.WarnContext(ctx, "stream failure alert failed", slog.String("error", nerr.Error()))
	}
}

// ArchiveDone reports the outcome of an archive run. Empty successful runs
// are not reported.
func (a *Alerter) ArchiveDone(ctx context.Context, archived int64, err error) {
	title, msg := "Archive complete", fmt.Sprintf("%d snapshots moved to cold storage", archived)
	switch {
	case err != nil:
		title, msg = "Archive failed", err.Error()
	case archived == 0:
		return
	}
	if nerr := a.alerts.Notify(ctx, notify.EventArchive, title, msg); nerr != nil {
		a.logger.WarnContext(ctx, "archive alert failed", slog.String("error", nerr.Error()))
	}
}

var _ domain.Sink = (*Alerter)(nil)
