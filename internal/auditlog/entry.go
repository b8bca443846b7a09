package auditlog

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyName is returned when an entry is added without an event name.
var ErrEmptyName = errors.New("auditlog: entry name is required")

// Entry is a single audit record.
type Entry struct {
	Name        string              `json:"name" msgpack:"n"`
	OID         string              `json:"oid" msgpack:"o"`
	Payload     jsoniter.RawMessage `json:"payload" msgpack:"p"`
	TimestampMs int64               `json:"ts_ms" msgpack:"t"`
}

// NewEntry builds an entry whose payload is the JSON encoding of fields.
// A nil fields map encodes as an empty object.
func NewEntry(name, oid string, fields map[string]any, at time.Time) (Entry, error) {
	if name == "" {
		return Entry{}, ErrEmptyName
	}
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:        name,
		OID:         oid,
		Payload:     payload,
		TimestampMs: at.UnixMilli(),
	}, nil
}

// Fields decodes the payload back into a map.
func (e Entry) Fields() (map[string]any, error) {
	out := map[string]any{}
	if len(e.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Time returns the entry timestamp.
func (e Entry) Time() time.Time { return time.UnixMilli(e.TimestampMs) }
