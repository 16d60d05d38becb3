package store

import "encoding/json"

// toJSONB marshals v for storage in a JSONB column. A nil v marshals to the
// JSON null literal, which Postgres accepts for a nullable jsonb column.
func toJSONB(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return raw
}

// fromJSONB unmarshals raw into dest, tolerating a nil/empty column (common
// for optional jsonb fields) by leaving dest untouched.
func fromJSONB(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
