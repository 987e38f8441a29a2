package store

import (
	"encoding/json"
)

// marshalStrings converts []string to JSON text for storage.
func marshalStrings(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// unmarshalStrings converts JSON text back to []string.
func unmarshalStrings(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var v []string
	_ = json.Unmarshal([]byte(s), &v)
	if len(v) == 0 {
		return nil
	}
	return v
}
