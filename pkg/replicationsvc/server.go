package replicationsvc

import (
	"context"
	"net"

	"go.uber.org/zap"
	"storj.io/drpc"
	"storj.io/drpc/drpcserver"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/replication"
	"github.com/storj-thirdparty/dataproxy/pkg/replicationpb"
)

// Serve listens on lis and serves pull-replication requests from
// peers, dispatching each accepted stream to replication.ServeSession.
func Serve(ctx context.Context, lis net.Listener, adapter backend.Adapter, lookup replication.SourceLookup, log *zap.Logger) error {
	handler := &sessionHandler{adapter: adapter, lookup: lookup, log: log}
	return drpcserver.New(handler).Serve(ctx, lis)
}

// sessionHandler implements drpc.Handler; the replication protocol has
// exactly one RPC, so HandleRPC ignores the rpc name entirely.
type sessionHandler struct {
	adapter backend.Adapter
	lookup  replication.SourceLookup
	log     *zap.Logger
}

func (h *sessionHandler) HandleRPC(stream drpc.Stream, rpc string) error {
	return replication.ServeSession(stream.Context(), &serverStream{Stream: stream}, h.adapter, h.lookup, h.log)
}

var _ drpc.Handler = (*sessionHandler)(nil)

// serverStream adapts a raw drpc.Stream to replicationpb.ServerStream:
// the server's Send carries Responses, its Recv carries Requests —
// the mirror image of clientStream.
type serverStream struct {
	drpc.Stream
}

func (s *serverStream) Send(resp *replicationpb.Response) error {
	return s.Stream.MsgSend(resp, replicationpb.GobCodec{})
}

func (s *serverStream) Recv() (*replicationpb.Request, error) {
	req := new(replicationpb.Request)
	if err := s.Stream.MsgRecv(req, replicationpb.GobCodec{}); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serverStream) CloseSend() error {
	return s.Stream.CloseSend()
}

var _ replicationpb.ServerStream = (*serverStream)(nil)
