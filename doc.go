// Package livetiming records the Formula 1 live timing stream.
//
// The feed is a legacy SignalR 1.5 endpoint: an HTTP negotiation yields a
// single-use connection token, a websocket carries hub invocations, and a
// Subscribe call selects the data topics delivered on it. This module
// implements the full client side and archives every decoded update to
// durable sinks for later replay.
//
// # Architecture
//
//	┌────────────────────────────────────┐
//	│            Supervisor              │  negotiate, connect,
//	│   (feed: reconnect loop, budget)   │  back off, retry
//	└──────────────────┬─────────────────┘
//	                   │ one Session per connection
//	┌──────────────────▼─────────────────┐
//	│             Session                │  subscribe, stream,
//	│  (feed: dedupe, decode, timeouts)  │  keep-alive
//	└──────────────────┬─────────────────┘
//	                   │ wire.Record
//	┌──────────────────▼─────────────────┐
//	│            Recorder                │  JSONL file and/or
//	│  (recorder: file, NATS JetStream)  │  JetStream subjects
//	└────────────────────────────────────┘
//
// # Packages
//
//   - wire: pure codec for the SignalR envelope format, payload
//     decompression, and the archived record shape
//   - feed: negotiation, websocket transport, subscription, session and
//     reconnection supervision
//   - recorder: append-only sinks (JSONL file, NATS JetStream, fan-out)
//   - natsclient: managed NATS connection with JetStream access
//   - config: YAML configuration with environment credential overrides
//   - metric: Prometheus registry and metrics endpoint
//   - errors: classified errors (transient, invalid, fatal)
//   - pkg/retry: exponential backoff with jitter
//
// # Binary
//
// cmd/livetiming subscribes and records until interrupted:
//
//	livetiming --topics TimingData,WeatherData --output session.jsonl
//	livetiming --config config.yaml --nats-url nats://localhost:4222
package livetiming
