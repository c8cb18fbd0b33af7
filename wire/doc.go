// Package wire implements the live timing feed's wire format.
//
// The feed speaks SignalR 1.5: each frame is a JSON envelope that may
// carry a reference-data map ("R", the initial full state sent once after
// subscription), an array of hub method invocations ("M", the continuous
// feed), a message cursor ("C"), or nothing at all (keep-alive).
//
// Individual payloads arrive in one of two encodings the server never
// declares: plain JSON text, or base64-wrapped raw-deflate binary used by
// high-volume topics (conventionally suffixed ".z"). DecodePayload tries
// the plain interpretation first and falls back to the compressed one.
//
// Everything in this package is pure: no I/O, no state, no blocking. The
// connection session owns all side effects.
package wire
