// Package feed implements the client side of the live timing streaming
// feed: HTTP negotiation, websocket connect, topic subscription, and the
// per-connection streaming session that decodes messages and hands them to
// a Recorder.
//
// The Supervisor is the entry point. It owns the reconnection loop: each
// attempt negotiates a fresh connection token, dials the websocket,
// subscribes, and streams until the connection drops or the context is
// cancelled. Transient failures are retried with exponential backoff up to
// a configured budget; rejected credentials stop the run immediately.
//
//	sub, _ := feed.NewSupervisor(feed.Config{
//	    BaseURL:     "https://livetiming.formula1.com/signalr",
//	    Topics:      []string{"TimingData", "SessionInfo"},
//	    MaxAttempts: 5,
//	    Backoff:     retry.Reconnect(),
//	}, rec)
//	err := sub.Run(ctx)
//
// A nil error from Run means the run completed: the context was cancelled
// after some amount of streaming. Everything received up to that point has
// been handed to the Recorder.
package feed
