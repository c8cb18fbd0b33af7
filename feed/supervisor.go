package feed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/metric"
	"github.com/br-g/fastf1-livetiming/pkg/retry"
)

// Config holds the caller-facing configuration for a run.
type Config struct {
	// BaseURL is the feed's negotiation/connect base, e.g.
	// "https://livetiming.formula1.com/signalr".
	BaseURL string
	// Hub is the streaming hub name, "Streaming" for the live timing feed.
	Hub string
	// Topics is the non-empty set of data topics to subscribe to.
	Topics []string
	// Auth is the opaque credential for the run.
	Auth Auth
	// MaxAttempts bounds consecutive failed connection attempts before
	// the run reports fatal failure. Must be positive.
	MaxAttempts int
	// Backoff shapes the delay between reconnection attempts.
	Backoff retry.Config
	// Session tunes per-connection behavior.
	Session SessionConfig
}

// Failure is one transient failure recorded along the way, sufficient to
// diagnose why reconnects occurred without inspecting internal state.
type Failure struct {
	Time    time.Time
	Attempt int
	Err     error
}

// HealthStatus is a point-in-time snapshot of the supervisor.
type HealthStatus struct {
	Connected bool
	Attempt   int
	Records   int64
	LastError string
	Uptime    time.Duration
}

// Supervisor drives the full lifecycle: negotiate, connect, subscribe,
// stream, and on failure back off and restart from negotiation, up to the
// configured retry budget. It is the only entry point callers start.
type Supervisor struct {
	cfg        Config
	sub        *Subscription
	negotiator Negotiator
	dialer     Dialer
	rec        Recorder
	logger     *slog.Logger
	metrics    *Metrics

	mu           sync.Mutex
	attempt      int
	connected    bool
	totalRecords int64
	failures     []Failure
	lastErr      error
	startTime    time.Time
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithMetricsRegistry enables Prometheus instrumentation
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(s *Supervisor) { s.metrics = newMetrics(registry, "feed") }
}

// WithNegotiator overrides the HTTP negotiator (used by tests)
func WithNegotiator(n Negotiator) Option {
	return func(s *Supervisor) { s.negotiator = n }
}

// WithDialer overrides the websocket dialer (used by tests)
func WithDialer(d Dialer) Option {
	return func(s *Supervisor) { s.dialer = d }
}

// WithHTTPClient sets the client used for negotiation
func WithHTTPClient(client *http.Client) Option {
	return func(s *Supervisor) {
		s.negotiator = NewNegotiator(s.cfg.BaseURL, s.cfg.Hub, s.cfg.Auth, client, s.logger)
	}
}

// NewSupervisor validates the configuration and builds a supervisor
// writing to the given recorder.
func NewSupervisor(cfg Config, rec Recorder, opts ...Option) (*Supervisor, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Supervisor", "NewSupervisor", "base URL required")
	}
	if cfg.Hub == "" {
		cfg.Hub = "Streaming"
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: max attempts must be positive", errors.ErrInvalidConfig),
			"Supervisor", "NewSupervisor", "validate retry budget")
	}
	if rec == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Supervisor", "NewSupervisor", "recorder required")
	}

	sub, err := NewSubscription(cfg.Hub, cfg.Topics)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		cfg:    cfg,
		sub:    sub,
		rec:    rec,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "supervisor")

	if s.negotiator == nil {
		s.negotiator = NewNegotiator(cfg.BaseURL, cfg.Hub, cfg.Auth, nil, s.logger)
	}
	if s.dialer == nil {
		s.dialer = &WebsocketDialer{BaseURL: cfg.BaseURL, Hub: cfg.Hub, Auth: cfg.Auth}
	}

	return s, nil
}

// Run executes the reconnection loop until the context is cancelled
// (returns nil, the run completed) or a fatal condition stops it:
// rejected credentials (ErrUnauthorized) or an exhausted retry budget
// (ErrRetriesExhausted). Transient failures along the way are retained
// and available via Failures.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil // requested stop is completion, not failure
		}

		err := s.runOnce(ctx)
		if err == nil || stderrors.Is(err, context.Canceled) || ctx.Err() != nil {
			s.logger.Info("run complete", "records", s.Health().Records)
			return nil
		}

		if stderrors.Is(err, errors.ErrUnauthorized) {
			// Retrying with a credential the feed already rejected wastes
			// the budget and hides the real problem.
			s.logger.Error("credentials rejected, not retrying", "error", err)
			return errors.WrapFatal(err, "Supervisor", "Run", "authenticate")
		}

		attempt := s.recordFailure(err)
		if attempt >= s.cfg.MaxAttempts {
			s.logger.Error("retry budget exhausted",
				"attempts", attempt, "last_error", err)
			return errors.WrapFatal(
				fmt.Errorf("%w: %d consecutive failures, last: %v",
					errors.ErrRetriesExhausted, attempt, err),
				"Supervisor", "Run", "reconnect")
		}

		delay := s.cfg.Backoff.DelayForAttempt(attempt)
		s.logger.Warn("session failed, will reconnect",
			"attempt", attempt, "max_attempts", s.cfg.MaxAttempts,
			"backoff", delay, "error", err)
		if s.metrics != nil {
			s.metrics.reconnectsTotal.Inc()
		}

		if err := s.cfg.Backoff.Sleep(ctx, attempt); err != nil {
			return nil // cancelled during backoff
		}
	}
}

// runOnce performs one full attempt: negotiate, dial, stream.
func (s *Supervisor) runOnce(ctx context.Context) error {
	neg, err := s.negotiator.Negotiate(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.negotiationsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.negotiationsTotal.WithLabelValues("ok").Inc()
	}

	conn, err := s.dialer.Dial(ctx, neg)
	if err != nil {
		return err
	}

	session := NewSession(conn, s.sub, s.rec, s.cfg.Session, s.logger, s.metrics)

	s.setConnected(true)
	err = session.Run(ctx)
	s.setConnected(false)

	delivered := session.Records()
	s.mu.Lock()
	s.totalRecords += delivered
	if delivered > 0 {
		// A healthy stretch of streaming earns the budget back: an
		// isolated failure after hours of delivery must not inherit
		// earlier attempts.
		s.attempt = 0
	}
	s.mu.Unlock()
	if s.metrics != nil && delivered > 0 {
		s.metrics.retryAttempt.Set(0)
	}

	return err
}

// recordFailure appends to the transient-failure log and returns the new
// consecutive-failure count.
func (s *Supervisor) recordFailure(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	s.lastErr = err
	s.failures = append(s.failures, Failure{
		Time:    time.Now(),
		Attempt: s.attempt,
		Err:     err,
	})
	if s.metrics != nil {
		s.metrics.retryAttempt.Set(float64(s.attempt))
	}
	return s.attempt
}

func (s *Supervisor) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

// Failures returns the ordered log of transient failures so far.
func (s *Supervisor) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Failure, len(s.failures))
	copy(out, s.failures)
	return out
}

// Health returns a point-in-time status snapshot.
func (s *Supervisor) Health() HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastErr := ""
	if s.lastErr != nil {
		lastErr = s.lastErr.Error()
	}
	uptime := time.Duration(0)
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}
	return HealthStatus{
		Connected: s.connected,
		Attempt:   s.attempt,
		Records:   s.totalRecords,
		LastError: lastErr,
		Uptime:    uptime,
	}
}
