package coinglass

import "strings"

// AugmentParams returns a copy of params with the classifier hints some
// endpoints silently require. Futures and spot paths carry their market type
// under several historical parameter names, and symbol-only queries gain a
// matching pair parameter. Existing entries are never overwritten.
func AugmentParams(path string, params map[string]string) map[string]string {
	out := make(map[string]string, len(params)+5)
	for k, v := range params {
		out[k] = v
	}
	marketType := ""
	switch {
	case strings.Contains(path, "/futures/"):
		marketType = "futures"
	case strings.Contains(path, "/spot/"):
		marketType = "spot"
	default:
		return out
	}
	if sym, ok := out["symbol"]; ok {
		if _, has := out["pair"]; !has {
			out["pair"] = sym
		}
	}
	for _, key := range []string{"market", "marketType", "type", "category"} {
		if _, has := out[key]; !has {
			out[key] = marketType
		}
	}
	return out
}
