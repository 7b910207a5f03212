package replicationpb

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"storj.io/drpc"
)

// Reset and String satisfy storj.io/drpc's minimal Message interface.
// Unlike a protoc-generated type, Request/Response carry no wire
// schema of their own — GobCodec below does the actual marshaling —
// so these are bookkeeping stubs, not generated code.
func (r *Request) Reset()         { *r = Request{} }
func (r *Request) String() string { return fmt.Sprintf("%+v", *r) }

func (r *Response) Reset()         { *r = Response{} }
func (r *Response) String() string { return fmt.Sprintf("%+v", *r) }

var (
	_ drpc.Message = (*Request)(nil)
	_ drpc.Message = (*Response)(nil)
)

// GobCodec implements drpc.Encoding over encoding/gob. The replication
// protocol never crosses a language boundary — every participant is
// this same dataproxy binary — so gob's reflection-based encoding is
// a simpler fit here than wiring a .proto toolchain for two struct
// types.
type GobCodec struct{}

var _ drpc.Encoding = GobCodec{}

func (GobCodec) Marshal(msg drpc.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, msg drpc.Message) error {
	msg.Reset()
	return gob.NewDecoder(bytes.NewReader(data)).Decode(msg)
}
