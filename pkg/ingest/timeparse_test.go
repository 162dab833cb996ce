package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToUnixMilliUnitEquivalence(t *testing.T) {
	// The same instant in seconds, milliseconds and ISO form must converge.
	want := int64(1700000000000)

	for name, v := range map[string]any{
		"seconds int":     int64(1700000000),
		"seconds float":   float64(1700000000),
		"millis int":      int64(1700000000000),
		"millis float":    float64(1700000000000),
		"seconds string":  "1700000000",
		"millis string":   "1700000000000",
		"iso utc":         "2023-11-14T22:13:20Z",
		"json.Number sec": json.Number("1700000000"),
	} {
		ms, ok := ToUnixMilli(v)
		require.True(t, ok, name)
		require.Equal(t, want, ms, name)
	}
}

func TestToUnixMilliStringForms(t *testing.T) {
	day := time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC).UnixMilli()

	ms, ok := ToUnixMilli("2023-11-14")
	require.True(t, ok)
	require.Equal(t, day, ms)

	ms, ok = ToUnixMilli("2023-11-14T00:00:00")
	require.True(t, ok)
	require.Equal(t, day, ms)

	ms, ok = ToUnixMilli("2023-11-14 00:00:00")
	require.True(t, ok)
	require.Equal(t, day, ms)

	ms, ok = ToUnixMilli("2023-11-14T01:00:00+01:00")
	require.True(t, ok)
	require.Equal(t, day, ms)
}

func TestToUnixMilliRejectsGarbage(t *testing.T) {
	for _, v := range []any{"not a time", "", nil, []any{1}, map[string]any{}} {
		_, ok := ToUnixMilli(v)
		require.False(t, ok, "%v", v)
	}
}

func TestToUnixMilliTimeValue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	ms, ok := ToUnixMilli(now)
	require.True(t, ok)
	require.Equal(t, now.UnixMilli(), ms)
}

func TestResolveTimeKey(t *testing.T) {
	rec := Record{"timestamp": float64(1), "value": float64(2)}

	key, ok := ResolveTimeKey(rec, "time")
	require.True(t, ok)
	require.Equal(t, "timestamp", key)

	key, ok = ResolveTimeKey(Record{"time": float64(1), "timestamp": float64(2)}, "")
	require.True(t, ok)
	require.Equal(t, "time", key)

	key, ok = ResolveTimeKey(Record{"t": float64(9)}, "time")
	require.True(t, ok)
	require.Equal(t, "t", key)

	// Preferred key present but nil falls through to the fallbacks.
	key, ok = ResolveTimeKey(Record{"time": nil, "date": "2024-01-01"}, "time")
	require.True(t, ok)
	require.Equal(t, "date", key)

	_, ok = ResolveTimeKey(Record{"open": float64(1)}, "time")
	require.False(t, ok)
}
