package wire

import (
	"encoding/json"
	"strings"
)

// rawQuirks repairs the feed's non-compliant JSON found in old raw
// recordings: single quotes and Python-style booleans.
var rawQuirks = strings.NewReplacer("'", `"`, "True", "true", "False", "false")

// MessagesFromRaw extracts feed invocation arguments from raw recorded
// frames, one line per frame. Lines that fail to parse even after quirk
// repair are skipped; the second return value counts them. Intended for
// offline processing of recordings made in raw mode.
func MessagesFromRaw(lines []string, hub string) ([][]json.RawMessage, int) {
	var out [][]json.RawMessage
	errorCount := 0

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var env Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			repaired := rawQuirks.Replace(line)
			if err := json.Unmarshal([]byte(repaired), &env); err != nil {
				errorCount++
				continue
			}
		}

		for _, inv := range env.Messages {
			if strings.EqualFold(inv.Hub, hub) {
				out = append(out, inv.Arguments)
			}
		}
	}

	return out, errorCount
}
