package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/config"
	"github.com/roach88/poe/internal/engine"
	"github.com/roach88/poe/internal/publish"
	"github.com/roach88/poe/internal/store"
)

// loadConfig resolves the effective configuration: file values over the
// defaults, then global flags over the file.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger. Diagnostics never go to stdout.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// session is one CLI invocation's view of the registry: config, journal,
// engine and the sinks its events flow into.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	engine   *engine.Engine
	registry *prometheus.Registry
	amqp     *publish.AMQPPublisher
}

// openStore loads the config and opens the journal without replaying it.
func openStore(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("opened journal", "database", cfg.Database)
	return &session{cfg: cfg, logger: logger, store: st}, nil
}

// openSession opens the journal and an engine on top of it.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s, err := openStore(opts, cmd)
	if err != nil {
		return nil, err
	}

	publishers := publish.Multi{publish.LogPublisher{Logger: s.logger}}
	if s.cfg.AMQP.URL != "" {
		p, err := publish.NewAMQPPublisher(publish.AMQPConfig{URL: s.cfg.AMQP.URL, Queue: s.cfg.AMQP.Queue})
		if err != nil {
			s.close()
			return nil, WrapExitError(ExitCommandError, "failed to connect event broker", err)
		}
		s.amqp = p
		publishers = append(publishers, p)
	}

	s.registry = prometheus.NewRegistry()
	eng, err := engine.Open(ctx, s.store, engine.Config{
		MaxBytesInHash:   s.cfg.MaxBytesInHash,
		BlockWeightLimit: s.cfg.BlockWeightLimit,
	}, engine.UUIDv7Generator{},
		engine.WithPublisher(publishers),
		engine.WithMetrics(engine.NewMetrics(s.registry)),
	)
	if err != nil {
		s.close()
		return nil, WrapExitError(ExitCommandError, "failed to open engine", err)
	}
	s.engine = eng
	s.logger.Debug("engine opened", "batch", eng.Batch(), "block", eng.Height(), "seq", eng.Seq())
	return s, nil
}

// closeInto closes the session and reports a close failure through err
// unless the command already failed.
func (s *session) closeInto(err *error) {
	if cerr := s.close(); cerr != nil && *err == nil {
		*err = WrapExitError(ExitCommandError, "failed to close session", cerr)
	}
}

// close flushes metrics and releases the broker and the journal.
func (s *session) close() error {
	var errs []error
	if s.registry != nil && s.cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(s.cfg.MetricsTextfile, s.registry); err != nil {
			errs = append(errs, err)
		}
	}
	if s.amqp != nil {
		errs = append(errs, s.amqp.Close())
	}
	errs = append(errs, s.store.Close())
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("failed to close session", "error", err)
		return err
	}
	return nil
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
