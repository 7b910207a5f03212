package replicationpb

// Stream is the minimal bidirectional-streaming surface the
// replication engine needs from its transport: send a client frame,
// receive a server frame. It mirrors storj.io/drpc.Stream's
// MsgSend/MsgRecv pair closely enough that pkg/replicationsvc can
// adapt a real drpc stream to it with a thin wrapper, while tests
// drive the engine over a trivial in-memory implementation.
type Stream interface {
	Send(*Request) error
	Recv() (*Response, error)
	CloseSend() error
}

// ServerStream is Stream's mirror image for the serving side of a pull
// session: it sends Responses and receives Requests. A production
// binding (pkg/replicationsvc) adapts one drpc.Stream to both
// directions depending on which end of the RPC it's wrapping; tests
// drive pkg/replication.ServeSession directly over the other half of
// pipestream_test.go's in-memory pipe.
type ServerStream interface {
	Send(*Response) error
	Recv() (*Request, error)
	CloseSend() error
}
