package firehosepb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Message is the minimal surface every message in this package implements;
// it stands in for proto.Message without requiring the full protoreflect
// descriptor machinery protoc-gen-go normally generates.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

const codecName = "firehosepb"

// firehoseCodec is a grpc/encoding.Codec that dispatches to each message's
// own Marshal/Unmarshal, registered under a distinct content-subtype so it
// never collides with the standard "proto" codec other services may use on
// the same process (grpc's encoding.RegisterCodec is a global registry).
type firehoseCodec struct{}

func (firehoseCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("firehosepb: %T does not implement Message", v)
	}
	return m.Marshal()
}

func (firehoseCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("firehosepb: %T does not implement Message", v)
	}
	return m.Unmarshal(data)
}

func (firehoseCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(firehoseCodec{})
}
