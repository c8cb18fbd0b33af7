package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br-g/fastf1-livetiming/errors"
)

func TestNewSubscription(t *testing.T) {
	sub, err := NewSubscription("Streaming", []string{"TimingData", "SessionInfo"})
	require.NoError(t, err)

	assert.Equal(t, "Streaming", sub.Hub())
	assert.Equal(t, []string{"SessionInfo", "TimingData"}, sub.Topics())
}

func TestNewSubscriptionNormalizes(t *testing.T) {
	sub, err := NewSubscription("Streaming", []string{
		"  WeatherData ", "DriverList", "WeatherData", "DriverList",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"DriverList", "WeatherData"}, sub.Topics())
}

func TestNewSubscriptionRejectsEmpty(t *testing.T) {
	_, err := NewSubscription("Streaming", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewSubscription("Streaming", []string{"TimingData", "  "})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestSubscriptionTopicsIsACopy(t *testing.T) {
	sub, err := NewSubscription("Streaming", []string{"TimingData"})
	require.NoError(t, err)

	topics := sub.Topics()
	topics[0] = "mutated"
	assert.Equal(t, []string{"TimingData"}, sub.Topics())
}

func TestSubscriptionMessageDeterministic(t *testing.T) {
	sub, err := NewSubscription("Streaming", []string{"SessionInfo", "TimingData"})
	require.NoError(t, err)

	first, err := sub.Message(1)
	require.NoError(t, err)
	second, err := sub.Message(1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.JSONEq(t,
		`{"H":"Streaming","M":"Subscribe","A":[["SessionInfo","TimingData"]],"I":1}`,
		string(first))
}
