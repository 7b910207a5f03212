// Package replicationsvc wires pkg/replication's transport-agnostic
// Stream/ServerStream interfaces onto a real storj.io/drpc connection,
// the way the teacher's own drpc-carried services (see its kademlia
// package) pair a drpcconn dialer with a drpcserver listener rather
// than hand-rolling a socket protocol.
package replicationsvc

import (
	"context"
	"net"

	"storj.io/drpc"
	"storj.io/drpc/drpcconn"

	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/replication"
	"github.com/storj-thirdparty/dataproxy/pkg/replicationpb"
)

// pullRPC is the single method name this package dispatches on; there
// is exactly one streaming RPC in the pull-replication protocol, so no
// Description/Mux registry is needed the way a multi-method service
// would need one.
const pullRPC = "/replication.Pull"

// Dial opens a pull-replication stream to a peer endpoint at addr,
// adapting the resulting drpc.Stream to replicationpb.Stream for
// pkg/replication.Session.
func Dial(ctx context.Context, addr string) (replicationpb.Stream, func() error, error) {
	rawConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	conn := drpcconn.New(rawConn)
	stream, err := conn.NewStream(ctx, pullRPC, replicationpb.GobCodec{})
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return &clientStream{Stream: stream}, conn.Close, nil
}

// clientStream adapts a raw drpc.Stream (MsgSend/MsgRecv over
// drpc.Message) to replicationpb.Stream's Request/Response pair.
type clientStream struct {
	drpc.Stream
}

func (c *clientStream) Send(req *replicationpb.Request) error {
	return c.Stream.MsgSend(req, replicationpb.GobCodec{})
}

func (c *clientStream) Recv() (*replicationpb.Response, error) {
	resp := new(replicationpb.Response)
	if err := c.Stream.MsgRecv(resp, replicationpb.GobCodec{}); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *clientStream) CloseSend() error {
	return c.Stream.CloseSend()
}

var _ replicationpb.Stream = (*clientStream)(nil)

// EndpointAddr resolves a replication endpoint's ULID to a dialable
// network address, e.g. from a membership table shared across peers.
type EndpointAddr func(endpoint model.ID) (string, error)

// NewDialer builds a replication.Dialer that opens a real drpc
// connection per call, for wiring into replication.NewScheduler. The
// stream's underlying connection is closed when the session closes
// its send side, matching pkg/replication.Scheduler's one-connection-
// per-pass usage.
func NewDialer(resolveAddr EndpointAddr) replication.Dialer {
	return func(ctx context.Context, endpoint model.ID) (replicationpb.Stream, error) {
		addr, err := resolveAddr(endpoint)
		if err != nil {
			return nil, err
		}
		stream, closeConn, err := Dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		return &closingStream{Stream: stream, closeConn: closeConn}, nil
	}
}

// closingStream tears down the underlying drpc connection once the
// session is done with the stream, since Dial hands back the stream
// and the connection separately.
type closingStream struct {
	replicationpb.Stream
	closeConn func() error
}

func (c *closingStream) CloseSend() error {
	err := c.Stream.CloseSend()
	_ = c.closeConn()
	return err
}
