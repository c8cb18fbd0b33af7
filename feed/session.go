package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/wire"
)

// Recorder consumes the ordered stream of decoded records. Append may
// block; the session then blocks the read path rather than dropping data.
type Recorder interface {
	Append(record wire.Record) error
}

// SessionConfig holds per-connection tuning. Zero values take defaults.
type SessionConfig struct {
	// SubscribeTimeout bounds the wait for the subscription
	// acknowledgement after the subscribe frame is sent.
	SubscribeTimeout time.Duration
	// IdleTimeout declares the session dead when no bytes arrive for
	// this long.
	IdleTimeout time.Duration
	// PingInterval is the keep-alive send period.
	PingInterval time.Duration
	// WriteTimeout bounds individual frame writes.
	WriteTimeout time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.SubscribeTimeout == 0 {
		c.SubscribeTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Session owns one physical connection end to end: subscribe, stream,
// close. It never retries; retry policy belongs to the Supervisor, which
// keeps the session a single-attempt unit.
type Session struct {
	id      string
	conn    *websocket.Conn
	sub     *Subscription
	rec     Recorder
	cfg     SessionConfig
	logger  *slog.Logger
	metrics *Metrics

	// writeMu enforces single-writer discipline between the subscribe
	// frame, the keep-alive loop, and the close handshake.
	writeMu sync.Mutex

	// seen tracks entry sequence numbers for duplicate suppression.
	// Session-scoped: a reconnect starts a fresh session with a fresh set.
	seen map[string]struct{}

	records atomic.Int64
}

// NewSession wraps an open connection. The caller transfers ownership of
// conn; the session closes it when Run returns.
func NewSession(conn *websocket.Conn, sub *Subscription, rec Recorder,
	cfg SessionConfig, logger *slog.Logger, metrics *Metrics) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()[:8]
	return &Session{
		id:      id,
		conn:    conn,
		sub:     sub,
		rec:     rec,
		cfg:     cfg.withDefaults(),
		logger:  logger.With("session_id", id),
		metrics: metrics,
		seen:    make(map[string]struct{}),
	}
}

// Records returns how many records this session delivered to the recorder.
// The supervisor uses it to reset the retry budget after a healthy stretch.
func (s *Session) Records() int64 {
	return s.records.Load()
}

// Run subscribes and streams until the connection fails, the feed goes
// idle, the recorder fails, or ctx is cancelled. Cancellation returns
// ctx.Err(); every other exit returns a classified session error.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()

	if s.metrics != nil {
		s.metrics.connected.Set(1)
		defer s.metrics.connected.Set(0)
	}

	// Closing the connection is the only way to unblock a pending read,
	// so cancellation watches ctx and closes out from under the reader.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go s.watchCancel(ctx, watchDone)

	if err := s.subscribe(); err != nil {
		return err
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(pingDone)

	return s.stream(ctx)
}

// subscribe sends the subscription control frame.
func (s *Session) subscribe() error {
	msg, err := s.sub.Message(1)
	if err != nil {
		return err
	}

	s.logger.Info("subscribing", "topics", s.sub.Topics())
	if err := s.write(websocket.TextMessage, msg); err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
			"Session", "subscribe", "send subscribe frame")
	}
	return nil
}

// write performs one frame write under the single-writer lock.
func (s *Session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

// pingLoop sends keep-alive pings until the session ends.
func (s *Session) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(s.cfg.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				// The read loop sees the same failure and classifies it.
				return
			}
		}
	}
}

// watchCancel closes the connection when ctx is cancelled so the blocked
// read returns promptly.
func (s *Session) watchCancel(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.cfg.WriteTimeout))
		s.writeMu.Unlock()
		s.conn.Close()
	}
}

// stream is the read path: subscribing until the first data-bearing
// envelope acknowledges the subscription, then streaming until an error.
func (s *Session) stream(ctx context.Context) error {
	subscribed := false
	// The ack deadline is absolute: keep-alive frames must not extend the
	// wait for the subscription to take effect.
	ackBy := time.Now().Add(s.cfg.SubscribeTimeout)

	for {
		deadline := ackBy
		if subscribed {
			deadline = time.Now().Add(s.cfg.IdleTimeout)
		}
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
				"Session", "stream", "set read deadline")
		}

		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return s.classifyReadError(ctx, err, subscribed)
		}

		env, err := wire.DecodeEnvelope(frame)
		if err != nil {
			// One malformed frame must not abort a healthy stream.
			s.logger.Warn("dropping malformed envelope", "error", err, "bytes", len(frame))
			if s.metrics != nil {
				s.metrics.decodeErrors.Inc()
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.envelopesTotal.Inc()
		}
		if env.ServerError != "" {
			s.logger.Warn("server error in envelope", "server_error", env.ServerError)
		}

		if env.Empty() {
			continue // keep-alive, resets the idle window
		}

		if !subscribed {
			subscribed = true
			s.logger.Info("subscription acknowledged",
				"reference_topics", len(env.Reference))
		}

		if err := s.emit(env); err != nil {
			return err
		}
	}
}

// emit delivers each envelope entry to the recorder in arrival order,
// suppressing duplicate retransmissions and skipping undecodable payloads.
func (s *Session) emit(env *wire.Envelope) error {
	received := time.Now().UTC()

	for _, event := range env.Events(s.sub.Hub()) {
		if event.Seq != "" {
			if _, dup := s.seen[event.Seq]; dup {
				if s.metrics != nil {
					s.metrics.duplicatesDropped.Inc()
				}
				continue
			}
			s.seen[event.Seq] = struct{}{}
		}

		payload, err := wire.DecodePayload(event.Raw)
		if err != nil {
			s.logger.Warn("dropping undecodable payload",
				"topic", event.Topic, "error", err)
			if s.metrics != nil {
				s.metrics.decodeErrors.Inc()
			}
			continue
		}

		record := wire.Record{
			Topic:     event.Topic,
			Timestamp: received,
			Payload:   payload,
			Reference: event.Reference,
		}
		if err := s.rec.Append(record); err != nil {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrSinkFailure, err),
				"Session", "emit", "append record")
		}

		s.records.Add(1)
		if s.metrics != nil {
			s.metrics.recordsTotal.WithLabelValues(event.Topic).Inc()
		}
	}

	return nil
}

// classifyReadError maps a failed read to the session error taxonomy.
func (s *Session) classifyReadError(ctx context.Context, err error, subscribed bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		if !subscribed {
			return errors.WrapTransient(
				fmt.Errorf("%w after %v", errors.ErrSubscribeTimeout, s.cfg.SubscribeTimeout),
				"Session", "stream", "await subscription ack")
		}
		return errors.WrapTransient(
			fmt.Errorf("%w after %v", errors.ErrIdleTimeout, s.cfg.IdleTimeout),
			"Session", "stream", "await data")
	}

	return errors.WrapTransient(
		fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
		"Session", "stream", "read frame")
}
