package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hashfydr/void-CLI/internal/api"
	"github.com/hashfydr/void-CLI/internal/auth"
	"github.com/hashfydr/void-CLI/internal/config"
	"github.com/hashfydr/void-CLI/internal/feed"
	"github.com/hashfydr/void-CLI/internal/store"
	"github.com/hashfydr/void-CLI/internal/stream"
)

// app holds the wired services for one invocation.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	items store.ItemStore
	data  store.DataStore

	auth   *auth.Service
	feed   *feed.Service
	engine *stream.Engine

	ops     *api.Server
	closers []func()
}

// newLogger builds the process logger: human-readable in development,
// JSON otherwise.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(out).
			With().
			Timestamp().
			Logger()
	}
	return logger.Level(level)
}

// openLogSink returns where logs go. Chat output owns stdout, so logs go to
// a file unless VOID_LOG_STDERR is set.
func openLogSink(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.LogStderr {
		return os.Stderr, func() {}, nil
	}
	if err := os.MkdirAll(cfg.ConfigDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	sink, closeSink, err := openLogSink(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: newLogger(cfg, sink)}
	a.closers = append(a.closers, closeSink)

	if err := a.openStores(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.auth = auth.NewService(a.data, auth.LogMailer{Logger: a.logger}, a.logger, auth.Options{
		ConfigDir:     cfg.ConfigDir,
		Secret:        []byte(cfg.SessionSecret),
		AllowedDomain: cfg.AllowedEmailDomain,
	})
	a.feed = feed.NewService(a.data, a.items, a.auth, a.logger)
	a.engine = stream.NewEngine(
		a.items,
		a.auth,
		stream.NewTerminalRenderer(os.Stdout),
		stream.NewLineReader(os.Stdin),
		a.logger,
		stream.Options{
			PageSize:      cfg.PageSize,
			Ceiling:       cfg.FetchCeiling,
			WindowSize:    cfg.WindowSize,
			EchoTolerance: cfg.EchoTolerance,
			SubmitRate:    cfg.SubmitRate,
			SubmitBurst:   cfg.SubmitBurst,
		},
	)

	if cfg.MetricsAddr != "" {
		ops, err := api.Start(cfg.MetricsAddr, a.logger, map[string]api.Pinger{
			"items": a.items,
			"data":  a.data,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("start ops endpoint: %w", err)
		}
		a.ops = ops
	}

	return a, nil
}

// openStores picks Redis for streams when REDIS_URL is set and Postgres for
// accounts when DATABASE_URL is set; otherwise everything stays local.
func (a *app) openStores(ctx context.Context) error {
	if a.cfg.RedisURL != "" {
		rs, err := store.NewRedisStore(ctx, a.cfg.RedisURL, a.logger)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		a.items = rs
		a.logger.Info().Msg("connected to Redis")
	} else {
		a.items = store.NewMemoryItemStore()
		a.logger.Warn().Msg("REDIS_URL not set, streams are local to this process")
	}
	a.closers = append(a.closers, func() { a.items.Close() })

	if a.cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres connection failed: %w", err)
		}
		a.closers = append(a.closers, pg.Close)

		a.logger.Info().Msg("running database migrations...")
		if err := pg.RunMigrations(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		a.data = pg
		a.logger.Info().Msg("connected to PostgreSQL")
		return nil
	}

	lite, err := store.NewSQLiteStore(ctx, a.cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	a.closers = append(a.closers, lite.Close)
	a.data = lite
	a.logger.Info().Str("path", a.cfg.SQLitePath).Msg("using SQLite")
	return nil
}

func (a *app) close() {
	if a.ops != nil {
		if err := a.ops.Shutdown(); err != nil {
			a.logger.Error().Err(err).Msg("ops endpoint forced to shutdown")
		}
	}
	// Close in reverse order of opening; the log sink goes last.
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
