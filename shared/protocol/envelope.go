package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type Envelope struct {
	Group string      `msgpack:"group,omitempty" json:"group,omitempty"`
	Type  MessageType `msgpack:"type" json:"type"`
	Body  any         `msgpack:"body" json:"body"`
}

func NewEnvelope(group string, msgType MessageType, body any) *Envelope {
	return &Envelope{
		Group: group,
		Type:  msgType,
		Body:  body,
	}
}

func (e *Envelope) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &e, nil
}

// EncodeJSON renders the envelope for text-frame clients. The json tags
// mirror the msgpack tags, so both wire forms carry identical field names.
func (e *Envelope) EncodeJSON() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope json: %w", err)
	}
	return data, nil
}

func DecodeEnvelopeJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope json: %w", err)
	}
	return &e, nil
}

// DecodeBody converts an envelope body into a concrete protocol struct.
//
// The round trip goes through JSON rather than msgpack: envelopes decoded
// from text frames carry float64 numbers, and JSON coerces those back into
// integer fields where msgpack would refuse.
func DecodeBody[T any](e *Envelope) (*T, error) {
	if typed, ok := e.Body.(T); ok {
		return &typed, nil
	}

	data, err := json.Marshal(e.Body)
	if err != nil {
		return nil, fmt.Errorf("re-encode body: %w", err)
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode body to %T: %w", result, err)
	}
	return &result, nil
}
