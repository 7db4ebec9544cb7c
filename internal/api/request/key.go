package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
)

// VerifyKey holds the request body for verifying a key.
type VerifyKey struct {
	Key      string `json:"key" validate:"required"`
	DeviceID string `json:"deviceId"`
}

// UnmarshalJSON accepts any JSON value for key and deviceId. Null, false,
// zero and the empty string count as absent; other non-string values are
// kept as their JSON text. A body that is not an object has no fields.
func (v *VerifyKey) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			*v = VerifyKey{}
			return nil
		}
		return err
	}

	v.Key = looseString(fields["key"])
	v.DeviceID = looseString(fields["deviceId"])
	return nil
}

// DecodeForm implements FormDecoder.
func (v *VerifyKey) DecodeForm(values url.Values) {
	v.Key = values.Get("key")
	v.DeviceID = values.Get("deviceId")
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var val any
	if err := dec.Decode(&val); err != nil {
		return ""
	}

	switch t := val.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	default:
		return string(bytes.TrimSpace(raw))
	}
}
