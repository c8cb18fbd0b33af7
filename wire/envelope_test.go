package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br-g/fastf1-livetiming/errors"
)

func TestDecodeEnvelope_KeepAlive(t *testing.T) {
	for _, raw := range []string{"{}", "", "  \n"} {
		env, err := DecodeEnvelope([]byte(raw))
		require.NoError(t, err, "raw=%q", raw)
		assert.True(t, env.Empty())
		assert.Empty(t, env.Events("Streaming"))
	}
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedEnvelope)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecodeEnvelope_FeedMessages(t *testing.T) {
	raw := `{
		"C": "d-ABC,0|1",
		"M": [
			{"H": "Streaming", "M": "feed", "A": ["TimingData", {"Lines": {}}, "2024-05-26T14:00:01.5Z"]},
			{"H": "Streaming", "M": "feed", "A": ["WeatherData", {"AirTemp": "24.1"}, "2024-05-26T14:00:01.6Z"]}
		]
	}`

	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	require.False(t, env.Empty())

	events := env.Events("Streaming")
	require.Len(t, events, 2)
	assert.Equal(t, "TimingData", events[0].Topic)
	assert.Equal(t, "WeatherData", events[1].Topic)
	assert.Equal(t, "d-ABC,0|1:0", events[0].Seq)
	assert.Equal(t, "d-ABC,0|1:1", events[1].Seq)
	assert.False(t, events[0].Reference)
	assert.JSONEq(t, `{"Lines": {}}`, string(events[0].Raw))
}

func TestEnvelope_Events_ReferenceSortedFirst(t *testing.T) {
	raw := `{
		"R": {"WeatherData": {"AirTemp": "24.1"}, "DriverList": []},
		"M": [{"H": "Streaming", "M": "feed", "A": ["SessionInfo", {}, "t"]}]
	}`

	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)

	events := env.Events("Streaming")
	require.Len(t, events, 3)
	assert.Equal(t, "DriverList", events[0].Topic)
	assert.Equal(t, "WeatherData", events[1].Topic)
	assert.Equal(t, "SessionInfo", events[2].Topic)
	assert.True(t, events[0].Reference)
	assert.True(t, events[1].Reference)
	assert.False(t, events[2].Reference)
	assert.Empty(t, events[0].Seq, "reference entries carry no sequence")
}

func TestEnvelope_Events_FiltersOtherHubs(t *testing.T) {
	raw := `{"M": [
		{"H": "Streaming", "M": "feed", "A": ["TimingData", {}, "t"]},
		{"H": "Admin", "M": "feed", "A": ["TimingData", {}, "t"]},
		{"H": "streaming", "M": "feed", "A": ["CarData.z", "blob", "t"]},
		{"H": "Streaming", "M": "feed", "A": ["TopicWithoutPayload"]}
	]}`

	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)

	events := env.Events("Streaming")
	require.Len(t, events, 2, "hub match is case-insensitive, short invocations skipped")
	assert.Equal(t, "TimingData", events[0].Topic)
	assert.Equal(t, "CarData.z", events[1].Topic)
}

func TestEnvelope_Events_NoCursorMeansNoSeq(t *testing.T) {
	raw := `{"M": [{"H": "Streaming", "M": "feed", "A": ["TimingData", {}, "t"]}]}`
	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)

	events := env.Events("Streaming")
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Seq)
}

func TestDecodeEnvelope_ServerError(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"E": "subscription rejected"}`))
	require.NoError(t, err)
	assert.Equal(t, "subscription rejected", env.ServerError)
}

func TestMessagesFromRaw(t *testing.T) {
	lines := []string{
		`{"M": [{"H": "Streaming", "M": "feed", "A": ["TimingData", {}, "t"]}]}`,
		// Python-repr quirks from legacy recordings
		`{'M': [{'H': 'Streaming', 'M': 'feed', 'A': ['TrackStatus', {'Ready': True}, 't']}]}`,
		`not parseable at all {{{`,
		``,
		`{"M": [{"H": "Other", "M": "feed", "A": ["Ignored", {}, "t"]}]}`,
	}

	msgs, errorCount := MessagesFromRaw(lines, "Streaming")
	assert.Equal(t, 1, errorCount)
	require.Len(t, msgs, 2)

	var topic string
	require.NoError(t, json.Unmarshal(msgs[1][0], &topic))
	assert.Equal(t, "TrackStatus", topic)
	assert.JSONEq(t, `{"Ready": true}`, string(msgs[1][1]))
}
