package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/auth"
	"github.com/anldrms/satellite-tracker-pro/internal/coordinator"
	"github.com/anldrms/satellite-tracker-pro/internal/observability"
	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
	"github.com/anldrms/satellite-tracker-pro/internal/scene"
	"github.com/anldrms/satellite-tracker-pro/internal/tle"
	"github.com/anldrms/satellite-tracker-pro/internal/view"
)

func logLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envInt reads a positive integer, warning and keeping def on bad values.
func envInt(logger *slog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

// envSeconds reads a positive whole number of seconds.
func envSeconds(logger *slog.Logger, key string, def time.Duration) time.Duration {
	return time.Duration(envInt(logger, key, int(def/time.Second))) * time.Second
}

func envBool(logger *slog.Logger, key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("SATVIEW_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("SATVIEW_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SATVIEW_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SATVIEW_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadSourceConfig(logger *slog.Logger) tle.SourceConfig {
	cfg := tle.SourceConfig{
		Timeout: envSeconds(logger, "SATVIEW_FETCH_TIMEOUT", 30*time.Second),
		S3: tle.S3Config{
			Region:          os.Getenv("SATVIEW_S3_REGION"),
			Endpoint:        os.Getenv("SATVIEW_S3_ENDPOINT"),
			PathStyle:       envBool(logger, "SATVIEW_S3_PATH_STYLE", false),
			AccessKeyID:     os.Getenv("SATVIEW_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SATVIEW_S3_SECRET_ACCESS_KEY"),
		},
	}

	logger.Info("source config",
		"timeout_seconds", cfg.Timeout.Seconds(),
		"s3_endpoint", cfg.S3.Endpoint,
		"s3_path_style", cfg.S3.PathStyle,
	)
	return cfg
}

func loadCoordinatorConfig(logger *slog.Logger) coordinator.Config {
	cfg := coordinator.Config{
		FetchConcurrency: envInt(logger, "SATVIEW_FETCH_CONCURRENCY", 1),
		RefreshInterval:  envSeconds(logger, "SATVIEW_REFRESH_INTERVAL", coordinator.DefaultRefreshInterval),
		FrameInterval:    envSeconds(logger, "SATVIEW_FRAME_INTERVAL", time.Second),
	}

	logger.Info("coordinator config",
		"fetch_concurrency", cfg.FetchConcurrency,
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
		"frame_interval_seconds", cfg.FrameInterval.Seconds(),
	)
	return cfg
}

func loadPropConfig(logger *slog.Logger) propagation.PropConfig {
	cfg := propagation.PropConfig{
		Workers: envInt(logger, "SATVIEW_PROP_WORKERS", runtime.NumCPU()),
	}
	logger.Info("propagation config", "workers", cfg.Workers)
	return cfg
}

func loadViewConfig(logger *slog.Logger) view.Config {
	return view.Config{
		DisplayLimit: envInt(logger, "SATVIEW_LIST_LIMIT", view.DefaultDisplayLimit),
	}
}

func loadSceneConfig(logger *slog.Logger) scene.Config {
	cfg := scene.Config{}
	if v := os.Getenv("SATVIEW_VIEWPORT"); v != "" {
		vp, err := parseViewport(v)
		if err != nil {
			logger.Warn("invalid SATVIEW_VIEWPORT value, using default", "value", v, "error", err)
		} else {
			cfg.Viewport = vp
		}
	}
	return cfg
}

// parseViewport parses "WIDTHxHEIGHT" in pixels.
func parseViewport(v string) (scene.Viewport, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return scene.Viewport{}, fmt.Errorf("want WIDTHxHEIGHT, got %q", v)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w < 1 || h < 1 {
		return scene.Viewport{}, fmt.Errorf("want positive WIDTHxHEIGHT, got %q", v)
	}
	return scene.Viewport{Width: w, Height: h}, nil
}

func loadStreamConfig(logger *slog.Logger) scene.StreamConfig {
	cfg := scene.StreamConfig{
		MaxConcurrentPerIP: envInt(logger, "SATVIEW_STREAM_MAX_CONCURRENT", 10),
		MaxTotal:           envInt(logger, "SATVIEW_STREAM_MAX_TOTAL", 1000),
		KeepaliveInterval:  envSeconds(logger, "SATVIEW_STREAM_KEEPALIVE_INTERVAL", 30*time.Second),
		TrustProxy:         envBool(logger, "SATVIEW_TRUST_PROXY", false),
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)
	return cfg
}

func loadTracingConfig(logger *slog.Logger) observability.TracingConfig {
	cfg := observability.TracingConfig{
		Enabled:     envBool(logger, "SATVIEW_TRACING_ENABLED", false),
		ServiceName: "satview",
		Exporter:    "otlp",
		Endpoint:    os.Getenv("SATVIEW_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	if v := os.Getenv("SATVIEW_TRACING_EXPORTER"); v != "" {
		cfg.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("SATVIEW_TRACING_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 1 {
			logger.Warn("invalid SATVIEW_TRACING_SAMPLE_RATIO value, using default", "value", v, "default", cfg.SampleRatio)
		} else {
			cfg.SampleRatio = r
		}
	}
	return cfg
}
