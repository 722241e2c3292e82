package replicate

import (
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype the replication service speaks.
const CodecName = "msgpack"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec carries replication messages as msgpack instead of protobuf.
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

func (codec) Name() string {
	return CodecName
}
