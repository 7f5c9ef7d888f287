package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/depthwatch/internal/bands"
	"github.com/alanyoungcy/depthwatch/internal/config"
	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/pipeline"
	"github.com/alanyoungcy/depthwatch/internal/render"
	"github.com/alanyoungcy/depthwatch/internal/server"
	"github.com/alanyoungcy/depthwatch/internal/server/handler"
	"github.com/alanyoungcy/depthwatch/internal/server/ws"
	"github.com/alanyoungcy/depthwatch/internal/service"
)

// TailMode follows every stream of the symbol and publishes the analytics
// to the log, the view cache and the bus.
func (a *App) TailMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting tail mode")

	alerter := a.newAlerter(deps)
	engine := pipeline.NewEngine(
		engineConfig(a.cfg), deps.LogStore, deps.LogStore,
		a.buildSink(deps, alerter, nil), deps.Metrics, a.logger,
	)
	engine.OnStreamFailure(alerter.StreamFailed)
	return engine.Run(ctx)
}

// ServerMode serves the cached views, the event buffer and the ws relay for
// an engine running in another process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	recorder := service.NewRecorder(a.cfg.Engine.RingCapacity, a.logger)
	g.Go(func() error {
		return recorder.Run(ctx, deps.SignalBus)
	})
	a.startHTTPServer(ctx, g, deps, recorder, nil)

	return g.Wait()
}

// FullMode runs the engine, the HTTP server and, when enabled, the archive
// schedule in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	alerter := a.newAlerter(deps)
	recorder := service.NewRecorder(a.cfg.Engine.RingCapacity, a.logger)
	engine := pipeline.NewEngine(
		engineConfig(a.cfg), deps.LogStore, deps.LogStore,
		a.buildSink(deps, alerter, recorder), deps.Metrics, a.logger,
	)
	engine.OnStreamFailure(alerter.StreamFailed)
	g.Go(func() error {
		return engine.Run(ctx)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		job := a.newArchiveJob(deps, alerter)
		g.Go(func() error {
			return job.RunCron(ctx, a.cfg.Archive.Cron)
		})
	}

	a.startHTTPServer(ctx, g, deps, recorder, engine)

	return g.Wait()
}

// ArchiveMode performs one archive pass and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return errors.New("archive mode: archiver not wired")
	}
	_, err := a.newArchiveJob(deps, a.newAlerter(deps)).Run(ctx)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	return nil
}

// buildSink fans each event out to the log, the publisher and the alerter,
// plus the in-process recorder when one is given.
func (a *App) buildSink(deps *Dependencies, alerter *service.Alerter, recorder *service.Recorder) domain.Sink {
	var history domain.SnapshotStore
	if a.cfg.Engine.Persist {
		history = deps.Snapshots
	}
	sinks := service.Fanout{
		service.NewLogSink(newRenderer(a.cfg), a.cfg.Engine.Verbose, a.logger),
		service.NewPublisher(deps.Views, deps.SignalBus, history, a.logger),
		alerter,
	}
	if recorder != nil {
		sinks = append(sinks, recorder)
	}
	return sinks
}

func (a *App) newAlerter(deps *Dependencies) *service.Alerter {
	return service.NewAlerter(deps.Notifier, service.AlerterConfig{
		Threshold: a.cfg.Notify.ImbalanceThreshold,
		Band:      a.cfg.Notify.ImbalanceBand,
		Cooldown:  a.cfg.Notify.Cooldown.Duration,
	}, a.logger)
}

func (a *App) newArchiveJob(deps *Dependencies, alerter *service.Alerter) *pipeline.ArchiveJob {
	job := pipeline.NewArchiveJob(
		deps.Archiver, deps.Snapshots,
		a.cfg.Archive.Retention.Duration, a.cfg.Archive.Prune, a.logger,
	)
	job.OnComplete(alerter.ArchiveDone)
	return job
}

// startHTTPServer adds the ws hub and the HTTP server to g. The server is
// shut down gracefully when ctx is cancelled. control is nil when the
// engine runs in another process.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	recent handler.RecentEvents,
	control handler.StreamControl,
) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		Symbol:    a.cfg.Engine.Symbol,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks, a.logger),
		Streams: handler.NewStreamHandler(deps.Views, recent, deps.Snapshots, control, newRenderer(a.cfg), a.logger),
		Metrics: deps.Metrics.Handler(),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func engineConfig(cfg *config.Config) pipeline.EngineConfig {
	return pipeline.EngineConfig{
		Symbol: cfg.Engine.Symbol,
		Venues: cfg.Venues(),
		Modes:  cfg.Modes(),
		Filter: bands.Filter{
			MinBid: cfg.Engine.MinBidThreshold,
			MinAsk: cfg.Engine.MinAskThreshold,
			Bands:  cfg.Bands(),
		},
		TopN:         cfg.Engine.TopN,
		PollInterval: cfg.Engine.PollInterval.Duration,
	}
}

func newRenderer(cfg *config.Config) *render.Renderer {
	var sticky domain.Side
	switch s := strings.ToLower(cfg.Engine.StickySide); s {
	case "bid", "ask":
		sticky = domain.Side(s)
	}
	return render.New(render.Options{
		Display:        render.DisplayMode(strings.ToLower(cfg.Engine.DisplayMode)),
		PricePrecision: cfg.Engine.PricePrecision,
		SizePrecision:  cfg.Engine.SizePrecision,
		StickySide:     sticky,
		Bands:          cfg.Bands(),
	})
}
