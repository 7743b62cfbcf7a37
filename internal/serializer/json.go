package serializer

import "encoding/json"

// JSON is the default Codec, matching the original firmware's wire format
// and kept human-readable for the debug HTTP surface. No ecosystem library
// in the retrieved pack offers a JSON codec beyond the standard library, so
// this part is stdlib by necessity rather than preference.
type JSON struct{}

func NewJSON() JSON { return JSON{} }

func (JSON) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSON) Name() string { return "json" }
