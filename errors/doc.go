// Package errors provides standardized error handling for the live timing
// client.
//
// # Error Classification
//
// Errors fall into three classes that drive the reconnection supervisor's
// retry decisions:
//
//   - Transient: network failures, idle timeouts, lost connections (retry)
//   - Invalid: malformed wire data (skip the entry, keep streaming)
//   - Fatal: rejected credentials, exhausted retry budget (stop)
//
// Classification integrates with Go's standard error handling, supporting
// errors.Is(), errors.As(), and wrapping chains.
//
// # Error Wrapping Pattern
//
// All wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Session", "run", "read frame")
//	errors.WrapInvalid(err, "Envelope", "Decode", "unmarshal")
//	errors.WrapFatal(err, "Negotiator", "Negotiate", "authenticate")
//
// # Standard Error Variables
//
// Pre-defined variables cover the protocol client's failure taxonomy:
// negotiation (ErrUnauthorized, ErrUnreachable), session (ErrConnectFailed,
// ErrSubscribeTimeout, ErrIdleTimeout, ErrSinkFailure), wire decoding
// (ErrMalformedEnvelope, ErrMalformedPayload), and supervision
// (ErrRetriesExhausted). Use these instead of ad-hoc messages so callers
// can branch on errors.Is.
package errors
