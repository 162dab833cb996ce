package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	msEpochFloor = int64(1e12) // values at or above this are millisecond epochs
	// Values in [1e10, 1e12) cannot be plausible second epochs (year 2286+),
	// so they are treated as milliseconds already.
	compactMsFloor = int64(1e10)
)

// ToUnixMilli converts a raw timestamp field to a canonical millisecond epoch.
// Integer-like values are classified by magnitude: >= 1e10 is milliseconds,
// anything smaller is seconds. Strings are parsed as ISO-8601 or
// "YYYY-MM-DD[ HH:MM:SS]", defaulting to UTC when no offset is present.
func ToUnixMilli(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return classifyEpoch(int64(t)), true
	case float32:
		return classifyEpoch(int64(t)), true
	case int:
		return classifyEpoch(int64(t)), true
	case int64:
		return classifyEpoch(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return classifyEpoch(n), true
		}
		if f, err := t.Float64(); err == nil {
			return classifyEpoch(int64(f)), true
		}
		return 0, false
	case string:
		return parseInstantString(t)
	case time.Time:
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

func classifyEpoch(v int64) int64 {
	if v >= compactMsFloor {
		return v
	}
	return v * 1000
}

// Layouts without an offset are interpreted as UTC.
var bareLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseInstantString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return classifyEpoch(n), true
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UnixMilli(), true
	}
	for _, layout := range bareLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UnixMilli(), true
		}
	}
	return 0, false
}
