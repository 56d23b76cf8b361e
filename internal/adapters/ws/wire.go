package ws

import (
	"errors"
	"fmt"

	"github.com/dkeye/lobby/internal/core"
	"github.com/fxamacker/cbor/v2"
)

// Broadcast channel control flags, first part of a client->server message.
const (
	UnsubscribeFlag byte = 0x00
	SubscribeFlag   byte = 0x01
)

var ErrEmptyEnvelope = errors.New("empty envelope")

// EncodeEnvelope packs a multipart message into a single websocket payload:
// a CBOR array of byte strings.
func EncodeEnvelope(env core.Envelope) ([]byte, error) {
	if len(env) == 0 {
		return nil, ErrEmptyEnvelope
	}
	parts := make([][]byte, len(env))
	for i, f := range env {
		parts[i] = f
	}
	b, err := cbor.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

func DecodeEnvelope(data []byte) (core.Envelope, error) {
	var parts [][]byte
	if err := cbor.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(parts) == 0 {
		return nil, ErrEmptyEnvelope
	}
	env := make(core.Envelope, len(parts))
	for i, p := range parts {
		env[i] = p
	}
	return env, nil
}
