// Package recorder implements the durable sinks decoded feed records are
// written to.
//
// File appends JSON lines to a local file, flushing after every record;
// the resulting file replays a session exactly as it was received. NATS
// publishes each record to a JetStream stream with one subject per topic,
// for live consumers and topic-selective replay. Multi fans out to several
// sinks at once.
//
// All sinks implement the feed package's Recorder interface and report
// write failures as transient sink errors, which the feed's supervisor
// turns into reconnect attempts.
package recorder
