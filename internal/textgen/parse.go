package textgen

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var trailingComma = regexp.MustCompile(`,(\s*[\]\}])`)

// ParseObject extracts a JSON object from model output. It tries a strict
// decode, then the outermost {...} span, then that span with trailing
// commas removed and unclosed brackets balanced. The second result is
// false when nothing usable was found.
func ParseObject(content string) (map[string]any, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false
	}

	if obj, ok := decodeObject(content); ok {
		return obj, true
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	span := content[start : end+1]
	if obj, ok := decodeObject(span); ok {
		return obj, true
	}

	return decodeObject(RepairJSON(span))
}

// RepairJSON applies best-effort fixes for almost-valid JSON. Brackets are
// only balanced when the quote count is even; an odd count means the text
// was cut inside a string and is returned without closers.
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)
	s = trailingComma.ReplaceAllString(s, "$1")

	if strings.Count(s, `"`)%2 != 0 {
		return s
	}

	if missing := strings.Count(s, "[") - strings.Count(s, "]"); missing > 0 {
		s += strings.Repeat("]", missing)
	}
	if missing := strings.Count(s, "{") - strings.Count(s, "}"); missing > 0 {
		s += strings.Repeat("}", missing)
	}
	return s
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// StringList keeps the non-empty string elements of v, trimmed.
func StringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// String renders scalars as text; anything else becomes "".
func String(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Int reads a whole number from a JSON number or numeric string, returning
// def when v is absent or not numeric.
func Int(v any, def int) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return def
		}
		return int(t)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(f)
		}
	}
	return def
}
