package coinglass

import "cgsync/pkg/ingest"

// listKeys are the conventional list-holding envelope keys, tried in order.
var listKeys = []string{
	"data", "list", "rows", "records", "values", "items",
	"points", "candles", "klines", "details", "result",
}

// UnwrapList extracts the record list from a decoded response body. The
// top-level value may already be a list, a mapping holding the list under one
// of the conventional keys, or a mapping with a nested data mapping holding
// it one level deeper. Anything else yields an empty result.
func UnwrapList(v any) []ingest.Record {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return toRecords(t)
	case map[string]any:
		if recs, ok := listFromMap(t); ok {
			return recs
		}
		if nested, ok := t["data"].(map[string]any); ok {
			if recs, ok := listFromMap(nested); ok {
				return recs
			}
		}
	}
	return nil
}

func listFromMap(m map[string]any) ([]ingest.Record, bool) {
	for _, k := range listKeys {
		if arr, ok := m[k].([]any); ok {
			return toRecords(arr), true
		}
	}
	return nil, false
}

func toRecords(arr []any) []ingest.Record {
	out := make([]ingest.Record, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, ingest.Record(m))
		}
	}
	return out
}
