package relay

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/canteen/pkg/event"
)

// DecodeEnvelope parses an inbound frame. It reports false for anything that
// is not a JSON object tagged with a producer message type.
func DecodeEnvelope(frame []byte) (event.Envelope, bool) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return event.Envelope{}, false
	}

	var env event.Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return event.Envelope{}, false
	}
	if !event.IsProducerType(env.Type) {
		return event.Envelope{}, false
	}
	return env, true
}

// EncodeFrame serializes a tagged frame once for every recipient.
func EncodeFrame(msgType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %s payload: %w", msgType, err)
	}
	frame, err := json.Marshal(event.Envelope{Type: msgType, Payload: body})
	if err != nil {
		return nil, fmt.Errorf("cannot encode %s frame: %w", msgType, err)
	}
	return frame, nil
}

// frameType reads only the type tag of an encoded frame.
func frameType(frame []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return ""
	}
	return head.Type
}
