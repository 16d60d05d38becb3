// Package redaction recursively masks secret-shaped fields out of payloads
// before they are persisted or logged — raw ingest bodies, delivery request
// snapshots, and admin-facing destination config all pass through it.
package redaction

// Sentinel replaces the value of any matched key.
const Sentinel = "**********"

// sensitiveKeys mirrors the ingest service's raw-payload redaction set.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"pass":          {},
	"pwd":           {},
	"secret":        {},
	"client_secret": {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"api_key":       {},
	"apikey":        {},
	"authorization": {},
	"auth":          {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[lower(key)]
	return ok
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Walk returns a deep copy of v with every map key matching the sensitive
// set (case-insensitive) replaced by Sentinel, recursing through nested
// maps and slices.
func Walk(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitive(k) {
				out[k] = Sentinel
				continue
			}
			out[k] = Walk(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Walk(item)
		}
		return out
	default:
		return v
	}
}

// Payload is a convenience wrapper for the common map[string]any case used
// throughout ingest and delivery.
func Payload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	return Walk(p).(map[string]any)
}
