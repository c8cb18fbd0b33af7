package feed

import (
	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/wire"
)

// Subscription is the immutable topic set for a run. It is built once at
// start and replayed after every reconnect, because server-side
// subscriptions do not survive a physical disconnect.
type Subscription struct {
	hub    string
	topics []string
}

// NewSubscription validates and normalizes the requested topic set.
// Duplicate topics are deduped rather than rejected; an empty set or a
// blank topic name is an error.
func NewSubscription(hub string, topics []string) (*Subscription, error) {
	if hub == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Subscription", "NewSubscription", "hub name required")
	}
	normalized, err := wire.NormalizeTopics(topics)
	if err != nil {
		return nil, err
	}
	return &Subscription{hub: hub, topics: normalized}, nil
}

// Hub returns the hub the subscription addresses
func (s *Subscription) Hub() string {
	return s.hub
}

// Topics returns a copy of the normalized topic set
func (s *Subscription) Topics() []string {
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

// Message builds the subscribe control frame with the given invocation id.
// Equal topic sets produce byte-identical frames.
func (s *Subscription) Message(id int) ([]byte, error) {
	return wire.SubscribeMessage(s.hub, s.topics, id)
}
