package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/wire"
)

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"TimingData", "TimingData"},
		{"CarData.z", "CarData_z"},
		{"Position.z", "Position_z"},
		{"has space", "has_space"},
		{"wild*card>", "wild_card_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SubjectToken(tt.topic), "topic %q", tt.topic)
	}
}

func TestNewNATSRequiresClient(t *testing.T) {
	_, err := NewNATS(context.Background(), nil, NATSConfig{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

// collectSink is a Sink that records appends and optionally fails.
type collectSink struct {
	mu      sync.Mutex
	records []wire.Record
	err     error
}

func (c *collectSink) Append(rec wire.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, rec)
	return nil
}

func TestMultiFansOut(t *testing.T) {
	a := &collectSink{}
	b := &collectSink{}
	m, err := NewMulti(a, b)
	require.NoError(t, err)

	rec := wire.Record{Topic: "TimingData", Timestamp: time.Now(), Payload: []byte(`{}`)}
	require.NoError(t, m.Append(rec))

	assert.Len(t, a.records, 1)
	assert.Len(t, b.records, 1)
}

func TestMultiStopsOnFirstFailure(t *testing.T) {
	a := &collectSink{}
	failing := &collectSink{err: assert.AnError}
	c := &collectSink{}
	m, err := NewMulti(a, failing, c)
	require.NoError(t, err)

	rec := wire.Record{Topic: "TimingData", Payload: []byte(`{}`)}
	err = m.Append(rec)
	require.Error(t, err)

	assert.Len(t, a.records, 1)
	assert.Empty(t, c.records)
}

func TestMultiRequiresSinks(t *testing.T) {
	_, err := NewMulti()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}
