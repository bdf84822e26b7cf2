package insights

import (
	"bytes"
	"encoding/json"
)

// Envelope keys naming the entity kind of a single-entity response.
const (
	KeyGroup    = "group"
	KeyMapping  = "mapping"
	KeyProperty = "property"
	KeyReport   = "report"
	KeyStatus   = "status"
	KeyRun      = "run"
)

// envelopeKeys is the lookup order. It never changes at runtime.
var envelopeKeys = [...]string{KeyGroup, KeyMapping, KeyProperty, KeyReport, KeyStatus, KeyRun}

// EnvelopeKeys returns the recognized envelope keys in lookup order.
func EnvelopeKeys() []string {
	keys := envelopeKeys
	return keys[:]
}

// ParseEnvelope returns the first recognized key present in body and the raw
// value under it. A null value counts as absent.
func ParseEnvelope(body []byte) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", nil, &InvalidResponseError{Operation: "parse envelope", Reason: "body is not a JSON object", Body: body, Err: err}
	}
	for _, key := range envelopeKeys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		return key, raw, nil
	}
	return "", nil, &InvalidResponseError{Operation: "parse envelope", Reason: "no recognized entity key", Body: body}
}

// ParseSingleEntityBody decodes the entity under the first recognized
// envelope key into E.
func ParseSingleEntityBody[E any](body []byte) (E, error) {
	var entity E
	key, raw, err := ParseEnvelope(body)
	if err != nil {
		return entity, err
	}
	if err := json.Unmarshal(raw, &entity); err != nil {
		return entity, &InvalidResponseError{Operation: "parse envelope", Reason: "decode " + key, Body: body, Err: err}
	}
	return entity, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
