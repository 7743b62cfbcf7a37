package serializer

import "github.com/vmihailenco/msgpack/v5"

// MsgPack is the space-constrained alternative Codec for links where frame
// size matters more than human readability — a microcontroller on a
// metered radio link, for instance.
type MsgPack struct{}

func NewMsgPack() MsgPack { return MsgPack{} }

func (MsgPack) Encode(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (MsgPack) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

func (MsgPack) Name() string { return "msgpack" }
