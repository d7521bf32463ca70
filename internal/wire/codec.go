// Package wire implements the boundary between the vault client and the
// registry's loosely typed encoding. Every remote payload passes through
// a strict decode step here; no untyped value crosses into the ledger
// client's return types.
package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// Name is the content subtype the registry codec is registered under.
// Calls opt in with grpc.CallContentSubtype(wire.Name).
const Name = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec marshals registry payloads as JSON. Proto messages (such as the
// health check exchange) keep proto encoding so the same connection can
// serve both.
type codec struct{}

func (codec) Name() string { return Name }

func (codec) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal registry payload: %w", err)
	}
	return data, nil
}

func (codec) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal registry payload: %w", err)
	}
	return nil
}
