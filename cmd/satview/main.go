// Command satview loads satellite element sets, keeps their live positions
// in a simulated scene and serves the view controls and scene stream.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/api"
	"github.com/anldrms/satellite-tracker-pro/internal/catalog"
	"github.com/anldrms/satellite-tracker-pro/internal/coordinator"
	"github.com/anldrms/satellite-tracker-pro/internal/observability"
	"github.com/anldrms/satellite-tracker-pro/internal/playback"
	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
	"github.com/anldrms/satellite-tracker-pro/internal/scene"
	"github.com/anldrms/satellite-tracker-pro/internal/tle"
	"github.com/anldrms/satellite-tracker-pro/internal/view"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("SATVIEW_LOG_LEVEL")),
	}))

	addr := os.Getenv("SATVIEW_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	groups, err := loadGroups(os.Getenv("SATVIEW_GROUPS_FILE"))
	if err != nil {
		logger.Error("invalid groups file", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, loadTracingConfig(logger), logger)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	engine := propagation.NewSGP4Engine()
	cat := catalog.New(logger)
	resolver := propagation.NewResolver(engine, cat, loadPropConfig(logger), logger)

	sc := scene.New(resolver, scene.NewClock(nil), loadSceneConfig(logger), logger)
	vs := view.New(cat, resolver, sc, loadViewConfig(logger), logger)
	pb := playback.New(sc, playback.DefaultSpeeds, logger)

	source := tle.NewSource(engine, loadSourceConfig(logger), logger)
	coordCfg := loadCoordinatorConfig(logger)
	coordCfg.Groups = groups
	coord := coordinator.New(coordCfg, source, cat, vs, sc, logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Coordinator: coord,
		View:        vs,
		Playback:    pb,
		Scene:       sc,
		Stream:      scene.NewStreamHandler(sc, loadStreamConfig(logger), logger),
	})

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "groups", len(groups))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("coordinator stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	<-done

	logger.Info("server stopped")
}
