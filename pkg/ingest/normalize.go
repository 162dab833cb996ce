package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ColumnKind selects how a mapped source value is coerced for storage.
type ColumnKind int

const (
	ColumnFloat ColumnKind = iota
	ColumnInt
	ColumnString
	// ColumnJSON serializes the source value (typically a nested list) for a
	// jsonb destination column.
	ColumnJSON
)

// ColumnSpec maps one destination column to an ordered list of acceptable
// source field names. A missing source yields NULL, never zero, so sparse
// provider data cannot corrupt downstream aggregates with false zeros.
type ColumnSpec struct {
	Name string
	Keys []string
	Kind ColumnKind
	// Const short-circuits mapping with a fixed value (e.g. a unit label that
	// is part of the natural key but absent from the payload).
	Const any
}

// Value extracts and coerces the column's value from a record. The returned
// value is driver-ready; nil maps to SQL NULL.
func (c ColumnSpec) Value(rec Record) any {
	if c.Const != nil {
		return c.Const
	}
	v, ok := rec.First(c.Keys...)
	if !ok {
		return nil
	}
	switch c.Kind {
	case ColumnFloat:
		if f, ok := toFloat64(v); ok {
			return f
		}
		return nil
	case ColumnInt:
		if n, ok := toInt64(v); ok {
			return n
		}
		return nil
	case ColumnString:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	case ColumnJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return nil
	}
}

// Keyed pairs a raw record with its resolved canonical instant.
type Keyed struct {
	InstantMS int64
	Record    Record
}

// Normalize turns a walk's accumulated records into a strictly ascending,
// duplicate-free sequence. Records outside the window or without a parseable
// timestamp are dropped. When two records share an instant the later-fetched
// one wins, since pages fetched later in the walk are assumed no less
// authoritative than earlier reads of the same bucket.
func Normalize(recs []Record, timeKey string, win Window) []Keyed {
	if len(recs) == 0 || timeKey == "" {
		return nil
	}
	byInstant := make(map[int64]Record, len(recs))
	for _, rec := range recs {
		ms, ok := ToUnixMilli(rec[timeKey])
		if !ok || !win.Contains(ms) {
			continue
		}
		byInstant[ms] = rec
	}
	out := make([]Keyed, 0, len(byInstant))
	for ms, rec := range byInstant {
		out = append(out, Keyed{InstantMS: ms, Record: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstantMS < out[j].InstantMS })
	return out
}

// MapValues applies the column specs to one record in declaration order.
func MapValues(rec Record, cols []ColumnSpec) []any {
	out := make([]any, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Value(rec))
	}
	return out
}
