package transport

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// Envelope kinds
const (
	KindCall  = "call"
	KindCast  = "cast"
	KindReply = "reply"
	KindError = "error"
)

// Payloads above this size are snappy-compressed on the wire.
const compressThreshold = 1024

// Envelope is the wire frame for leader calls. The payload is arbitrary
// JSON produced by the caller; the core never inspects it.
type Envelope struct {
	ID         string `json:"id"`                   // correlation ID
	Kind       string `json:"kind"`                 // call, cast, reply, error
	Service    string `json:"service,omitempty"`    // target service on call/cast
	Token      string `json:"token,omitempty"`      // caller's node identity token
	Compressed bool   `json:"compressed,omitempty"` // payload is snappy-compressed
	Payload    []byte `json:"payload,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewCallEnvelope builds a call frame with a fresh correlation ID
func NewCallEnvelope(service, token string, payload []byte) Envelope {
	return Envelope{
		ID:      uuid.NewString(),
		Kind:    KindCall,
		Service: service,
		Token:   token,
		Payload: payload,
	}
}

// NewCastEnvelope builds a fire-and-forget frame
func NewCastEnvelope(service, token string, payload []byte) Envelope {
	env := NewCallEnvelope(service, token, payload)
	env.Kind = KindCast
	return env
}

// Reply builds the success reply to this envelope
func (e Envelope) Reply(payload []byte) Envelope {
	return Envelope{ID: e.ID, Kind: KindReply, Payload: payload}
}

// ReplyError builds the error reply to this envelope
func (e Envelope) ReplyError(err error) Envelope {
	return Envelope{ID: e.ID, Kind: KindError, Error: err.Error()}
}

// Encode marshals the envelope, compressing large payloads
func (e Envelope) Encode() ([]byte, error) {
	if len(e.Payload) > compressThreshold {
		e.Payload = snappy.Encode(nil, e.Payload)
		e.Compressed = true
	}
	return json.Marshal(e)
}

// DecodeEnvelope unmarshals an envelope and decompresses its payload
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("malformed envelope: %w", err)
	}
	if e.Compressed {
		payload, err := snappy.Decode(nil, e.Payload)
		if err != nil {
			return e, fmt.Errorf("payload decompression failed: %w", err)
		}
		e.Payload = payload
		e.Compressed = false
	}
	return e, nil
}
