// Package app owns the depthwatch process lifecycle: it wires the clients
// and stores, then runs the subsystems of the configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/depthwatch/internal/config"
)

type modeFunc func(a *App, ctx context.Context, deps *Dependencies) error

// modes maps the config mode names to their runners.
var modes = map[string]modeFunc{
	"tail":    (*App).TailMode,
	"server":  (*App).ServerMode,
	"full":    (*App).FullMode,
	"archive": (*App).ArchiveMode,
}

// App holds the configuration and the cleanup of whatever Run wired.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies the mode needs and blocks in that mode until it
// returns or ctx is cancelled. Call Close afterwards to release them.
func (a *App) Run(ctx context.Context) error {
	run, ok := modes[strings.ToLower(a.cfg.Mode)]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.logger.InfoContext(ctx, "starting depthwatch",
		slog.String("mode", a.cfg.Mode),
		slog.String("symbol", a.cfg.Engine.Symbol),
		slog.Bool("postgres", a.cfg.NeedsPostgres()),
		slog.Bool("s3", a.cfg.NeedsS3()),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.cleanup = cleanup

	return run(a, ctx, deps)
}

// Close releases everything Run wired. Calling it again is a no-op.
func (a *App) Close() {
	if a.cleanup == nil {
		return
	}
	a.logger.Info("releasing connections")
	a.cleanup()
	a.cleanup = nil
}
