package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Fenced code blocks, with and without a json language tag. The tagged
// pattern is tried first so a reply mixing prose blocks and a json block
// resolves to the json one.
var (
	jsonFenceRe  = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")
	plainFenceRe = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```")
)

// ExtractJSON pulls a structured payload out of an agent reply. The reply
// may be bare JSON or prose with the payload inside a fenced block.
// Returns nil when no valid JSON can be found; callers treat that as a
// degraded (not fatal) outcome.
func ExtractJSON(text string) json.RawMessage {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	for _, re := range []*regexp.Regexp{jsonFenceRe, plainFenceRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate)
			}
		}
	}
	return nil
}
