package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes proto messages. newMsg allocates the concrete message that
// Decode fills, e.g. func() *pb.Item { return &pb.Item{} }.
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: newMsg}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	err := proto.Unmarshal(b, m)
	return m, err
}
