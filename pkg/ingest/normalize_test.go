package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDedupLastWins(t *testing.T) {
	recs := []Record{
		{"time": float64(1700000200), "close": float64(1)},
		{"time": float64(1700000100), "close": float64(2)},
		// Re-read of the same bucket from a later page.
		{"time": float64(1700000200), "close": float64(3)},
	}
	out := Normalize(recs, "time", secWindow(1700000000, 1700000300))

	require.Len(t, out, 2)
	require.Equal(t, int64(1700000100000), out[0].InstantMS)
	require.Equal(t, int64(1700000200000), out[1].InstantMS)
	require.Equal(t, float64(3), out[1].Record["close"])
}

func TestNormalizeFiltersWindowAndUnparseable(t *testing.T) {
	recs := []Record{
		{"time": float64(1700000100), "close": float64(1)},
		{"time": float64(1600000000), "close": float64(2)}, // before window
		{"time": "garbage", "close": float64(3)},
		{"close": float64(4)}, // missing key
	}
	out := Normalize(recs, "time", secWindow(1700000000, 1700000300))

	require.Len(t, out, 1)
	require.Equal(t, int64(1700000100000), out[0].InstantMS)
}

func TestNormalizeEmptyInputs(t *testing.T) {
	require.Nil(t, Normalize(nil, "time", secWindow(0, 1)))
	require.Nil(t, Normalize([]Record{{"time": float64(1)}}, "", secWindow(0, 1)))
}

func TestColumnSpecMissingYieldsNil(t *testing.T) {
	rec := Record{"open": float64(1.5), "volume": ""}
	cols := []ColumnSpec{
		{Name: "open", Keys: []string{"open"}, Kind: ColumnFloat},
		{Name: "volume_usd", Keys: []string{"volume_usd", "volume"}, Kind: ColumnFloat},
		{Name: "unit", Kind: ColumnString, Const: "usd"},
	}
	vals := MapValues(rec, cols)

	require.Equal(t, []any{1.5, nil, "usd"}, vals)
}

func TestRecordFirstAndFloat(t *testing.T) {
	rec := Record{"a": nil, "b": "", "c": "1.5", "d": float64(2)}

	v, ok := rec.First("a", "b", "c", "d")
	require.True(t, ok)
	require.Equal(t, "1.5", v)

	f, ok := rec.Float("a", "b", "c")
	require.True(t, ok)
	require.Equal(t, 1.5, f)

	_, ok = rec.First("a", "b")
	require.False(t, ok)
}

func TestColumnSpecSynonymOrder(t *testing.T) {
	rec := Record{"volume_usd": float64(10), "volume": float64(99)}
	spec := ColumnSpec{Name: "volume_usd", Keys: []string{"volume_usd", "volume"}, Kind: ColumnFloat}
	require.Equal(t, float64(10), spec.Value(rec))
}

func TestColumnSpecKinds(t *testing.T) {
	rec := Record{
		"count":  float64(42),
		"ticker": "IBIT",
		"flows":  []any{map[string]any{"ticker": "IBIT", "flow": float64(5)}},
		"rate":   "0.25",
	}

	intSpec := ColumnSpec{Name: "count", Keys: []string{"count"}, Kind: ColumnInt}
	require.Equal(t, int64(42), intSpec.Value(rec))

	strSpec := ColumnSpec{Name: "ticker", Keys: []string{"ticker"}, Kind: ColumnString}
	require.Equal(t, "IBIT", strSpec.Value(rec))

	jsonSpec := ColumnSpec{Name: "details", Keys: []string{"flows"}, Kind: ColumnJSON}
	require.JSONEq(t, `[{"ticker":"IBIT","flow":5}]`, jsonSpec.Value(rec).(string))

	floatSpec := ColumnSpec{Name: "rate", Keys: []string{"rate"}, Kind: ColumnFloat}
	require.Equal(t, 0.25, floatSpec.Value(rec))
}
