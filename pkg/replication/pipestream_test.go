package replication

import (
	"errors"
	"sync"

	"github.com/storj-thirdparty/dataproxy/pkg/replicationpb"
)

// pipeStream is an in-memory, single-directional-at-a-time
// implementation of replicationpb.Stream good enough to drive Session
// end to end in tests without a real storj.io/drpc transport. A pair
// of pipeStreams wired to each other's channels models one
// bidirectional session: the client's Send feeds the server's Recv
// and vice versa.
type pipeStream struct {
	out    chan *replicationpb.Request
	in     chan *replicationpb.Response
	mu     sync.Mutex
	closed bool
}

// newPipePair returns (client, server) streams wired to each other.
// The client sends Request frames the server receives, and the server
// sends Response frames the client receives.
func newPipePair(capacity int) (client *pipeStream, server *serverSideStream) {
	reqCh := make(chan *replicationpb.Request, capacity)
	respCh := make(chan *replicationpb.Response, capacity)

	client = &pipeStream{out: reqCh, in: respCh}
	server = &serverSideStream{in: reqCh, out: respCh}
	return client, server
}

func (p *pipeStream) Send(r *replicationpb.Request) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.New("pipestream: send on closed stream")
	}
	p.out <- r
	return nil
}

func (p *pipeStream) Recv() (*replicationpb.Response, error) {
	resp, ok := <-p.in
	if !ok {
		return nil, errors.New("pipestream: closed")
	}
	return resp, nil
}

func (p *pipeStream) CloseSend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		close(p.out)
		p.closed = true
	}
	return nil
}

// serverSideStream is the test harness's view of the other end of a
// pipeStream pair: it reads Requests and writes Responses, used to
// script a fake remote endpoint's behavior in a test.
type serverSideStream struct {
	in  chan *replicationpb.Request
	out chan *replicationpb.Response
}

func (s *serverSideStream) recv() (*replicationpb.Request, bool) {
	r, ok := <-s.in
	return r, ok
}

func (s *serverSideStream) send(r *replicationpb.Response) {
	s.out <- r
}

func (s *serverSideStream) close() {
	close(s.out)
}

// newServeTestPair wires a pipeStream (driven by the test as the
// pulling peer) to a pipeServerStream implementing
// replicationpb.ServerStream (driven by ServeSession as the serving
// peer), for exercising ServeSession end to end.
func newServeTestPair(capacity int) (client *pipeStream, server *pipeServerStream) {
	reqCh := make(chan *replicationpb.Request, capacity)
	respCh := make(chan *replicationpb.Response, capacity)

	client = &pipeStream{out: reqCh, in: respCh}
	server = &pipeServerStream{in: reqCh, out: respCh}
	return client, server
}

type pipeServerStream struct {
	in     chan *replicationpb.Request
	out    chan *replicationpb.Response
	mu     sync.Mutex
	closed bool
}

func (s *pipeServerStream) Send(r *replicationpb.Response) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("pipestream: send on closed stream")
	}
	s.out <- r
	return nil
}

func (s *pipeServerStream) Recv() (*replicationpb.Request, error) {
	req, ok := <-s.in
	if !ok {
		return nil, errors.New("pipestream: closed")
	}
	return req, nil
}

func (s *pipeServerStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.out)
		s.closed = true
	}
	return nil
}
