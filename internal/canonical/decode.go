package canonical

import "encoding/json"

// decodeListingPayload round-trips payload through JSON into a
// ListingPayload. A decode failure becomes a single structured error rather
// than a panic — canonical payloads arrive as arbitrary partner JSON and
// must never crash the ingest path.
func decodeListingPayload(payload map[string]any) (ListingPayload, []ValidationError) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ListingPayload{}, []ValidationError{{Field: "_", Message: "payload_not_serializable"}}
	}
	var p ListingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ListingPayload{}, []ValidationError{{Field: "_", Message: "payload_shape_invalid"}}
	}
	return p, nil
}
