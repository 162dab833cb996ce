package ingest

// timeKeyFallbacks is the fixed candidate order tried after the preferred key.
var timeKeyFallbacks = []string{"time", "timestamp", "ts", "t", "date"}

// ResolveTimeKey determines which field of a sample record carries the event
// timestamp. The preferred key wins when present and non-nil; otherwise the
// fallback list is tried in order. Resolution happens once per walk, from the
// first non-empty page, and is never repeated mid-walk.
func ResolveTimeKey(sample Record, preferred string) (string, bool) {
	if preferred != "" {
		if v, ok := sample[preferred]; ok && v != nil {
			return preferred, true
		}
	}
	for _, k := range timeKeyFallbacks {
		if v, ok := sample[k]; ok && v != nil {
			return k, true
		}
	}
	return "", false
}
