package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/natsclient"
	"github.com/br-g/fastf1-livetiming/wire"
)

// NATSConfig configures the JetStream sink.
type NATSConfig struct {
	// Stream is the JetStream stream name records are stored in.
	Stream string `yaml:"stream"`
	// SubjectPrefix is prepended to the topic-derived subject token, e.g.
	// prefix "livetiming" and topic "TimingData" publish to
	// "livetiming.TimingData".
	SubjectPrefix string `yaml:"subject_prefix"`
	// PublishTimeout bounds each publish ack wait.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	// MaxAge bounds record retention in the stream; zero keeps forever.
	MaxAge time.Duration `yaml:"max_age"`
}

func (c NATSConfig) withDefaults() NATSConfig {
	if c.Stream == "" {
		c.Stream = "LIVETIMING"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "livetiming"
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = 5 * time.Second
	}
	return c
}

// NATS publishes records to a JetStream stream, one subject per topic, so
// consumers can replay a single topic or the whole session.
type NATS struct {
	client *natsclient.Client
	cfg    NATSConfig
	logger *slog.Logger

	written atomic.Int64
}

// NewNATS ensures the stream exists and returns the sink. The client must
// already be connected.
func NewNATS(ctx context.Context, client *natsclient.Client, cfg NATSConfig, logger *slog.Logger) (*NATS, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"NATS", "NewNATS", "client required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	_, err := client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   cfg.MaxAge,
	})
	if err != nil {
		return nil, err
	}

	return &NATS{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "recorder", "stream", cfg.Stream),
	}, nil
}

// Append publishes one record and waits for the JetStream ack.
func (n *NATS) Append(rec wire.Record) error {
	data, err := rec.MarshalJSON()
	if err != nil {
		return errors.WrapInvalid(err, "NATS", "Append", "marshal record")
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.PublishTimeout)
	defer cancel()

	subject := n.cfg.SubjectPrefix + "." + SubjectToken(rec.Topic)
	if err := n.client.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrSinkFailure, err),
			"NATS", "Append", "publish record")
	}

	n.written.Add(1)
	return nil
}

// Written reports how many records have been published.
func (n *NATS) Written() int64 {
	return n.written.Load()
}

// SubjectToken maps a feed topic to a single NATS subject token. Dots
// would split the topic across tokens and wildcards would change routing,
// so all such characters collapse to underscores ("CarData.z" becomes
// "CarData_z").
func SubjectToken(topic string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		default:
			return r
		}
	}, topic)
}
