package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONPayloadEmbeddedVerbatim(t *testing.T) {
	rec := Record{
		Topic:     "TimingData",
		Timestamp: time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC),
		Payload:   []byte(`{"Lines":{"44":{"Position":"1"}}}`),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload":{"Lines"`)

	var out Record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, rec.Topic, out.Topic)
	assert.Equal(t, string(rec.Payload), string(out.Payload))
}

func TestRecordTextPayloadRoundTrip(t *testing.T) {
	rec := Record{
		Topic:     "RaceControlMessages",
		Timestamp: time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC),
		Payload:   []byte("YELLOW FLAG SECTOR 7"),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload":"YELLOW FLAG SECTOR 7"`)

	// The quoting applied on the way out must come off on the way in.
	var out Record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "YELLOW FLAG SECTOR 7", string(out.Payload))
}

func TestRecordReferenceFlagSurvives(t *testing.T) {
	rec := Record{
		Topic:     "DriverList",
		Timestamp: time.Now().UTC(),
		Payload:   []byte(`[]`),
		Reference: true,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out Record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Reference)
}
