package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/br-g/fastf1-livetiming/errors"
)

// serverInvocation is the outbound hub call frame.
type serverInvocation struct {
	Hub       string `json:"H"`
	Method    string `json:"M"`
	Arguments []any  `json:"A"`
	ID        int    `json:"I"`
}

// NormalizeTopics validates, dedupes, and sorts a topic set. Order-
// insensitive inputs produce an identical slice so the subscribe message
// is byte-for-byte deterministic. An empty set or a blank topic name is
// rejected.
func NormalizeTopics(topics []string) ([]string, error) {
	if len(topics) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Subscribe", "NormalizeTopics", "at least one topic required")
	}

	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: empty topic name", errors.ErrInvalidConfig),
				"Subscribe", "NormalizeTopics", "validate topic")
		}
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	sort.Strings(out)
	return out, nil
}

// SubscribeMessage builds the control frame requesting server-side
// subscription to the given topics: {"H":hub,"M":"Subscribe","A":[[...]],"I":id}.
// Topics are normalized first, so equal sets encode identically regardless
// of insertion order. Subscriptions do not survive a disconnect; the frame
// must be re-sent on every new connection.
func SubscribeMessage(hub string, topics []string, id int) ([]byte, error) {
	normalized, err := NormalizeTopics(topics)
	if err != nil {
		return nil, err
	}

	msg := serverInvocation{
		Hub:       hub,
		Method:    "Subscribe",
		Arguments: []any{normalized},
		ID:        id,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Subscribe", "SubscribeMessage", "marshal invocation")
	}
	return data, nil
}
