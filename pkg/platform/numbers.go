package platform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// abbreviations maps count suffixes to multipliers. Covers the latin
// abbreviations and the CJK myriad units the platform localizes with.
var abbreviations = map[string]float64{
	"k": 1e3,
	"m": 1e6,
	"b": 1e9,
	"千": 1e3,
	"万": 1e4,
	"億": 1e8,
}

// unitSuffixes are trailing unit words stripped before parsing
// ("1,234人", "5678 subscribers").
var unitSuffixes = []string{
	"人",
	"件",
	"回",
	"subscribers",
	"subscriber",
	"viewers",
	"viewer",
	"likes",
	"views",
}

// parseCountText normalizes localized count text into an integer.
//
// Accepted forms: plain digits, comma/space grouping ("12,345"),
// abbreviated magnitudes ("1.2K", "3M", "12万", "1.5億"), and any of
// those with a trailing unit word. Anything else fails with
// ErrUnparsableCount.
func parseCountText(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnparsableCount)
	}

	lower := strings.ToLower(s)
	for _, unit := range unitSuffixes {
		lower = strings.TrimSuffix(lower, unit)
	}
	lower = strings.TrimSpace(lower)

	multiplier := 1.0
	for suffix, mult := range abbreviations {
		if strings.HasSuffix(lower, suffix) {
			lower = strings.TrimSuffix(lower, suffix)
			multiplier = mult
			break
		}
	}

	lower = strings.ReplaceAll(lower, ",", "")
	lower = strings.ReplaceAll(lower, " ", "")
	lower = strings.ReplaceAll(lower, " ", "")
	if lower == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableCount, text)
	}

	value, err := strconv.ParseFloat(lower, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableCount, text)
	}

	return int64(value * multiplier), nil
}

// decodeCount parses one raw JSON field into a Count. Numbers are taken
// as-is, strings go through parseCountText, null and anything else is
// unavailable.
func decodeCount(raw json.RawMessage) Count {
	if len(raw) == 0 || string(raw) == "null" {
		return Count{}
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return Count{}
		}
		return Count{Value: int64(n), OK: true}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		value, parseErr := parseCountText(s)
		if parseErr != nil {
			return Count{}
		}
		return Count{Value: value, OK: true}
	}

	return Count{}
}

// firstCount probes fields in order and returns the first parseable
// count, or an unavailable Count when no strategy succeeds.
func firstCount(fields map[string]json.RawMessage, keys ...string) Count {
	for _, key := range keys {
		if raw, ok := fields[key]; ok {
			if count := decodeCount(raw); count.OK {
				return count
			}
		}
	}
	return Count{}
}

// firstString probes fields in order for a non-empty string.
func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// firstBool probes fields in order for a boolean.
func firstBool(fields map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
	}
	return false
}
