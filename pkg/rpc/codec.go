// Package rpc carries Share commands and replies across a process
// boundary over a Unix domain socket, using gRPC purely as a framed
// transport: there is no .proto schema, just a hand-written
// ServiceDesc (service.go) paired with a jsoniter codec so the wire
// messages are the same protocol.Command/protocol.Reply types the
// in-process channel already uses.
package rpc

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package and selected
// per-call via grpc.ForceCodec/grpc.ForceServerCodec; it never touches
// the default proto codec, so none of our types need to implement
// proto.Message.
const codecName = "share-json"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := jsonAPI.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
