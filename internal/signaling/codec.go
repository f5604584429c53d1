package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes envelopes into websocket frames. JSON travels in text
// frames so browsers can speak it; msgpack travels in binary frames.
type Codec interface {
	Name() string
	FrameType() int
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
}

// CodecByName returns the codec for name, defaulting to JSON for "".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type JSONCodec struct{}

func (JSONCodec) Name() string   { return "json" }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode json frame: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("decode json frame: missing type")
	}
	return &msg, nil
}

type MsgpackCodec struct{}

func (MsgpackCodec) Name() string   { return "msgpack" }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(msg *Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func (MsgpackCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode msgpack frame: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("decode msgpack frame: missing type")
	}
	// JSON peers must be able to re-encode whatever is relayed to them.
	if len(msg.Payload) > 0 && !json.Valid(msg.Payload) {
		return nil, fmt.Errorf("decode msgpack frame: payload is not JSON")
	}
	return &msg, nil
}

// DecodeFrame decodes an inbound frame with the codec its frame type implies,
// so either side may switch codecs without renegotiating.
func DecodeFrame(frameType int, data []byte) (*Message, error) {
	if frameType == websocket.BinaryMessage {
		return MsgpackCodec{}.Decode(data)
	}
	return JSONCodec{}.Decode(data)
}
