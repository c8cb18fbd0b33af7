// Package main implements the livetiming command, a client that records
// the Formula 1 live timing stream to durable sinks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/br-g/fastf1-livetiming/config"
	"github.com/br-g/fastf1-livetiming/feed"
	"github.com/br-g/fastf1-livetiming/metric"
	"github.com/br-g/fastf1-livetiming/natsclient"
	"github.com/br-g/fastf1-livetiming/pkg/retry"
	"github.com/br-g/fastf1-livetiming/recorder"
)

const (
	version = "0.1.0"
	appName = "livetiming"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath  string
	baseURL     string
	topics      []string
	output      string
	natsURL     string
	authScheme  string
	maxAttempts int
	duration    time.Duration
	logLevel    string
	metricsPort int
	showVersion bool
}

func parseFlags() *cliFlags {
	f := &cliFlags{}
	pflag.StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	pflag.StringVar(&f.baseURL, "url", "", "feed base URL (overrides config)")
	pflag.StringSliceVarP(&f.topics, "topics", "t", nil, "topics to subscribe to (overrides config)")
	pflag.StringVarP(&f.output, "output", "o", "", "JSONL output path (overrides config)")
	pflag.StringVar(&f.natsURL, "nats-url", "", "NATS server URL for the JetStream sink")
	pflag.StringVar(&f.authScheme, "auth", "", "auth scheme: none, bearer or session (token from "+config.TokenEnvVar+")")
	pflag.IntVar(&f.maxAttempts, "max-attempts", 0, "consecutive connection failures before giving up")
	pflag.DurationVarP(&f.duration, "duration", "d", 0, "stop recording after this long (0 runs until interrupted)")
	pflag.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pflag.IntVar(&f.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port")
	pflag.BoolVarP(&f.showVersion, "version", "v", false, "print version and exit")
	pflag.Parse()
	return f
}

func run() error {
	flags := parseFlags()
	if flags.showVersion {
		fmt.Printf("%s %s\n", appName, version)
		return nil
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting", "app", appName, "version", version,
		"url", cfg.Feed.BaseURL, "topics", cfg.Feed.Topics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if flags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.duration)
		defer cancel()
	}

	rec, cleanup, err := buildRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var opts []feed.Option
	opts = append(opts, feed.WithLogger(logger))

	if cfg.Metrics.Enabled {
		registry := metric.NewMetricsRegistry()
		opts = append(opts, feed.WithMetricsRegistry(registry))

		metricsServer := metric.NewServer(cfg.Metrics.Port, "/metrics", registry)
		if err := metricsServer.Start(); err != nil {
			return err
		}
		defer func() {
			if err := metricsServer.Stop(5 * time.Second); err != nil {
				logger.Warn("metrics server shutdown failed", "error", err)
			}
		}()
	}

	sup, err := feed.NewSupervisor(feed.Config{
		BaseURL:     cfg.Feed.BaseURL,
		Hub:         cfg.Feed.Hub,
		Topics:      cfg.Feed.Topics,
		Auth:        buildAuth(cfg),
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff: retry.Config{
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   2.0,
			AddJitter:    true,
		},
		Session: feed.SessionConfig{
			SubscribeTimeout: cfg.Session.SubscribeTimeout,
			IdleTimeout:      cfg.Session.IdleTimeout,
		},
	}, rec, opts...)
	if err != nil {
		return err
	}

	err = sup.Run(ctx)
	health := sup.Health()
	logger.Info("stopped", "records", health.Records, "uptime", health.Uptime.Round(time.Second))
	return err
}

// loadConfig layers CLI flags over the config file over defaults.
func loadConfig(flags *cliFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.baseURL != "" {
		cfg.Feed.BaseURL = flags.baseURL
	}
	if len(flags.topics) > 0 {
		cfg.Feed.Topics = flags.topics
	}
	if flags.output != "" {
		cfg.Output.File = flags.output
	}
	if flags.natsURL != "" {
		cfg.Output.NATS.URL = flags.natsURL
	}
	if flags.authScheme != "" {
		cfg.Feed.AuthScheme = flags.authScheme
	}
	if flags.maxAttempts > 0 {
		cfg.Retry.MaxAttempts = flags.maxAttempts
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.metricsPort > 0 {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = flags.metricsPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func buildAuth(cfg *config.Config) feed.Auth {
	switch cfg.Feed.AuthScheme {
	case "bearer":
		return feed.BearerAuth(cfg.Feed.Token)
	case "session":
		return feed.SessionAuth(cfg.Feed.Token)
	default:
		return feed.NoAuth()
	}
}

// buildRecorder assembles the configured sinks. The returned cleanup
// flushes and closes them.
func buildRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recorder.Sink, func(), error) {
	var sinks []recorder.Sink
	var closers []func()

	if cfg.Output.File != "" {
		file, err := recorder.NewFile(cfg.Output.File, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, file)
		closers = append(closers, func() {
			if err := file.Close(); err != nil {
				logger.Warn("closing output file failed", "error", err)
			}
		})
	}

	if cfg.Output.NATS.URL != "" {
		client, err := natsclient.New(cfg.Output.NATS.URL,
			natsclient.WithName(appName),
			natsclient.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, nil, err
		}
		sink, err := recorder.NewNATS(ctx, client, recorder.NATSConfig{
			Stream:        cfg.Output.NATS.Stream,
			SubjectPrefix: cfg.Output.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		closers = append(closers, client.Close)
	}

	multi, err := recorder.NewMulti(sinks...)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return multi, cleanup, nil
}
