package wire

import (
	"encoding/json"
	"time"
)

// Record is the fully decoded unit handed to the recorder: one topic entry
// with its receive-time timestamp. Payload is always the plain decoded
// form; consumers never see compressed or base64 bytes. Reference marks
// initial full-state snapshots, which reconnects may re-deliver and which
// consumers must treat as idempotent replacements rather than increments.
type Record struct {
	Topic     string
	Timestamp time.Time
	Payload   []byte
	Reference bool
}

// recordJSON is the serialized shape written by sinks.
type recordJSON struct {
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Reference bool            `json:"reference,omitempty"`
}

// MarshalJSON embeds the payload verbatim when it is valid JSON and as a
// quoted string otherwise, keeping recorded lines self-describing.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Topic:     r.Topic,
		Timestamp: r.Timestamp,
		Reference: r.Reference,
	}
	if json.Valid(r.Payload) {
		out.Payload = json.RawMessage(r.Payload)
	} else {
		quoted, err := json.Marshal(string(r.Payload))
		if err != nil {
			return nil, err
		}
		out.Payload = quoted
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON for offline processing of
// recorded files. String payloads decode to their text content, undoing
// the quoting MarshalJSON applies to non-JSON payloads.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Topic = in.Topic
	r.Timestamp = in.Timestamp
	r.Payload = []byte(in.Payload)
	r.Reference = in.Reference

	if len(in.Payload) > 0 && in.Payload[0] == '"' {
		var text string
		if err := json.Unmarshal(in.Payload, &text); err == nil {
			r.Payload = []byte(text)
		}
	}
	return nil
}
