package utils

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Response statuses
const (
	StatusOK       = "OK"
	StatusError    = "ERROR"
	StatusNotFound = "NOT_FOUND"
)

// Request is a single client command as it travels over the wire and into the
// binlog.
type Request struct {
	Command string `msgpack:"command"`
	Key     string `msgpack:"key,omitempty"`
	Value   string `msgpack:"value,omitempty"`
	Dest    string `msgpack:"dest,omitempty"`
	Count   int64  `msgpack:"count,omitempty"`
	Message string `msgpack:"message,omitempty"`

	// ID identifies an applied write across the cluster. It is assigned by
	// the node that applies the write first and kept in the binlog.
	ID string `msgpack:"id,omitempty"`
}

// Response is the server answer to a Request.
type Response struct {
	Status  string      `msgpack:"status"`
	Value   interface{} `msgpack:"value,omitempty"`
	Message string      `msgpack:"message,omitempty"`
}

// OK builds a successful response carrying value.
func OK(value interface{}) *Response {
	return &Response{Status: StatusOK, Value: value}
}

// NotFound builds a NOT_FOUND response.
func NotFound() *Response {
	return &Response{Status: StatusNotFound}
}

// ErrorResponse builds an ERROR response with the given message.
func ErrorResponse(message string) *Response {
	return &Response{Status: StatusError, Message: message}
}

// EncodeResponse serializes a response into a byte slice
func EncodeResponse(response *Response) ([]byte, error) {
	return msgpack.Marshal(response)
}

// DecodeRequest deserializes a byte slice into a request
func DecodeRequest(data []byte) (*Request, error) {
	var request Request
	if err := msgpack.Unmarshal(data, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// NewDecoder returns a msgpack decoder reading consecutive values from r.
func NewDecoder(r io.Reader) *msgpack.Decoder {
	return msgpack.NewDecoder(r)
}

// NewEncoder returns a msgpack encoder writing to w.
func NewEncoder(w io.Writer) *msgpack.Encoder {
	return msgpack.NewEncoder(w)
}
