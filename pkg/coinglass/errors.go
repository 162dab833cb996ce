package coinglass

import "fmt"

// HTTPError reports a non-2xx response. Body holds a flattened snippet of the
// response body, bounded for log friendliness.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("coinglass: http status %d: %s", e.Status, e.Body)
}

// DecodeError reports a 2xx response whose body was not valid JSON.
type DecodeError struct {
	Body string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("coinglass: non-json response: %s", e.Body)
}

// ProviderError reports an application-level rejection carried inside a JSON
// envelope whose code field is neither missing nor "0".
type ProviderError struct {
	Code string
	Msg  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("coinglass: provider code %s: %s", e.Code, e.Msg)
}
