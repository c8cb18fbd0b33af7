// Package wire implements the codec for the live timing feed's wire format:
// the SignalR 1.5 message envelope and its two payload encodings.
package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/br-g/fastf1-livetiming/errors"
)

// Invocation is one hub method call carried inside an envelope. Feed data
// arrives as invocations whose arguments are [topic, payload, timestamp].
type Invocation struct {
	Hub       string            `json:"H"`
	Method    string            `json:"M"`
	Arguments []json.RawMessage `json:"A"`
}

// Envelope is the wire-level unit received on the persistent connection.
// A subscription acknowledgement carries Reference (topic to initial
// full-state payload); regular traffic carries Messages; a keep-alive
// carries neither and is still a valid envelope.
type Envelope struct {
	Cursor       string                     `json:"C,omitempty"`
	Reference    map[string]json.RawMessage `json:"R,omitempty"`
	Messages     []Invocation               `json:"M,omitempty"`
	InvocationID json.RawMessage            `json:"I,omitempty"`
	ServerError  string                     `json:"E,omitempty"`
}

// Event is one decoded entry extracted from an envelope, in arrival order.
// Raw holds the payload still in its wire encoding; DecodePayload recovers
// the plain form. Seq is non-empty only when the feed supplied a message
// cursor, and identifies retransmitted duplicates within a session.
type Event struct {
	Topic     string
	Raw       json.RawMessage
	Seq       string
	Reference bool
}

// DecodeEnvelope parses a raw frame into an Envelope. An empty or
// whitespace-only frame and the {} keep-alive both decode to an empty
// envelope rather than an error.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &Envelope{}, nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err),
			"Envelope", "DecodeEnvelope", "unmarshal frame")
	}
	return &env, nil
}

// Empty reports whether the envelope carries no data entries (keep-alive).
func (e *Envelope) Empty() bool {
	return len(e.Reference) == 0 && len(e.Messages) == 0
}

// Events flattens the envelope into ordered entries for the given hub.
// Reference entries come first, sorted by topic for determinism (the wire
// representation is an unordered object); method invocations follow in
// arrival order. Invocations addressed to other hubs or missing a payload
// argument are skipped.
func (e *Envelope) Events(hub string) []Event {
	events := make([]Event, 0, len(e.Reference)+len(e.Messages))

	refTopics := make([]string, 0, len(e.Reference))
	for topic := range e.Reference {
		refTopics = append(refTopics, topic)
	}
	sort.Strings(refTopics)
	for _, topic := range refTopics {
		events = append(events, Event{
			Topic:     topic,
			Raw:       e.Reference[topic],
			Reference: true,
		})
	}

	for i, inv := range e.Messages {
		if !strings.EqualFold(inv.Hub, hub) {
			continue
		}
		if len(inv.Arguments) < 2 {
			continue
		}

		var topic string
		if err := json.Unmarshal(inv.Arguments[0], &topic); err != nil || topic == "" {
			continue
		}

		seq := ""
		if e.Cursor != "" {
			seq = fmt.Sprintf("%s:%d", e.Cursor, i)
		}
		events = append(events, Event{
			Topic: topic,
			Raw:   inv.Arguments[1],
			Seq:   seq,
		})
	}

	return events
}
