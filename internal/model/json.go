package model

import "encoding/json"

// RawJSON is a JSON document stored in a JSONB column.
// A nil value marshals as an empty object.
type RawJSON []byte

// MarshalJSON implements json.Marshaler.
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("{}"), nil
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// String returns the document text, "{}" when empty.
func (r RawJSON) String() string {
	if len(r) == 0 {
		return "{}"
	}
	return string(r)
}

// MustJSON marshals v, falling back to an empty object.
func MustJSON(v any) RawJSON {
	data, err := json.Marshal(v)
	if err != nil {
		return RawJSON("{}")
	}
	return data
}
