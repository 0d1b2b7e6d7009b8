package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// JSONArray extracts the text between the first '[' and the last ']' of a
// model reply and parses it as a JSON array. ok is false when the reply holds
// no such span or the span is not a valid array; callers then fall back to
// their conservative default.
func JSONArray(reply string) (items []gjson.Result, ok bool) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	span := reply[start : end+1]
	if !gjson.Valid(span) {
		return nil, false
	}
	res := gjson.Parse(span)
	if !res.IsArray() {
		return nil, false
	}
	return res.Array(), true
}
