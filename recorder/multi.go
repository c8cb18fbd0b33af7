package recorder

import (
	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/wire"
)

// Sink is the append-only destination records flow into.
type Sink interface {
	Append(rec wire.Record) error
}

// Multi fans every record out to all sinks in order. The first failure
// stops the fan-out and is returned; earlier sinks keep the record.
type Multi struct {
	sinks []Sink
}

// NewMulti builds a fan-out over the given sinks.
func NewMulti(sinks ...Sink) (*Multi, error) {
	if len(sinks) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Multi", "NewMulti", "at least one sink required")
	}
	return &Multi{sinks: sinks}, nil
}

// Append writes the record to every sink.
func (m *Multi) Append(rec wire.Record) error {
	for _, sink := range m.sinks {
		if err := sink.Append(rec); err != nil {
			return err
		}
	}
	return nil
}
