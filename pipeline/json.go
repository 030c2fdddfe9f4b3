package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject is a best-effort parser for model replies. It parses the
// span from the first '{' to the last '}' of text, ignoring any prose or code
// fences around it. If the span does not parse as-is, a single repair pass
// adds missing opening quotes on object keys before giving up.
func ExtractJSONObject(text string) (map[string]any, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, ErrNoJSONObject
	}
	span := text[start : end+1]

	var obj map[string]any
	err := json.Unmarshal([]byte(span), &obj)
	if err == nil {
		return obj, nil
	}

	if repaired := repairJSON(span); repaired != span {
		var fixed map[string]any
		if json.Unmarshal([]byte(repaired), &fixed) == nil {
			return fixed, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
}

// repairJSON fixes keys that lost their opening quote, e.g. `, type":` -> `, "type":`.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	i := 0
	for i < len(in) {
		ch := in[i]
		out = append(out, ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		for i < len(in) && (in[i] == ' ' || in[i] == '\n' || in[i] == '\t' || in[i] == '\r') {
			out = append(out, in[i])
			i++
		}
		if i >= len(in) || !isKeyStart(in[i]) {
			continue
		}

		keyStart := i
		for i < len(in) && isKeyRune(in[i]) {
			i++
		}
		if i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
			out = append(out, '"')
		}
		out = append(out, in[keyStart:i]...)
	}
	return string(out)
}

func isKeyStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isKeyRune(r rune) bool {
	return isKeyStart(r) || r == '_' || (r >= '0' && r <= '9')
}
