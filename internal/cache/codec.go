package cache

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes cached values. Encoded payloads start with a one-byte
// format tag so a value written by another codec is detected instead of
// misdecoded.
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// ErrCodecMismatch is returned by Decode when the payload was written by
// a different codec (or is not tagged at all).
const ErrCodecMismatch CacheError = "cache codec mismatch"

const (
	tagJSON    byte = 'j'
	tagMsgpack byte = 'm'
)

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache codec: %s", name)
	}
}

// JSONCodec encodes values with encoding/json.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{tagJSON}, b...), nil
}

func (JSONCodec) Decode(data []byte, v any) error {
	payload, err := untag(data, tagJSON)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

// MsgpackCodec encodes values with MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{tagMsgpack}, b...), nil
}

func (MsgpackCodec) Decode(data []byte, v any) error {
	payload, err := untag(data, tagMsgpack)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(payload, v)
}

func untag(data []byte, want byte) ([]byte, error) {
	if len(data) == 0 || data[0] != want {
		return nil, ErrCodecMismatch
	}
	return data[1:], nil
}
