// Package replication implements the peer-to-peer pull replication
// engine (spec §6): a scheduler batches pending objects per remote
// endpoint, and a per-endpoint Session drives a bidirectional stream
// through three cooperating tasks — demux, sync ledger, and a backend
// driver per in-flight object — coordinated with golang.org/x/sync/errgroup
// the way the teacher's own concurrency-heavy packages do.
package replication

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/metrics"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/replicationpb"
)

// chunkQueueCapacity and ledgerQueueCapacity match spec §5's channel
// sizing for the replication engine's internal plumbing.
const (
	chunkQueueCapacity  = 100
	ledgerQueueCapacity = 100
)

// LocationResolver turns an incoming object ID into the Location its
// bytes should land at, including whether it should be encrypted or
// compressed on write — supplied by the caller so this package stays
// independent of the cache and resource-resolution packages.
type LocationResolver func(objectID string) (*model.Location, error)

// ObjectResult is one object's outcome from a pull session.
type ObjectResult struct {
	ObjectID string
	Location *model.Location
	Err      error
}

// Session drives one bidirectional pull-replication stream against a
// single remote endpoint.
type Session struct {
	stream  replicationpb.Stream
	selfID  model.ID
	adapter backend.Adapter
	resolve LocationResolver
	log     *zap.Logger
	metrics *metrics.Metrics
	sendMu  sync.Mutex
}

// NewSession builds a session bound to an already-established stream.
// m may be nil (tests that don't care about instrumentation).
func NewSession(stream replicationpb.Stream, selfID model.ID, adapter backend.Adapter, resolve LocationResolver, log *zap.Logger, m *metrics.Metrics) *Session {
	return &Session{stream: stream, selfID: selfID, adapter: adapter, resolve: resolve, log: log, metrics: m}
}

// Pull runs one full batch: it announces the wanted object IDs,
// demuxes every inbound frame to the right per-object driver, and
// blocks until the peer signals Finish or the context is canceled.
// It returns one ObjectResult per requested object, in no particular
// order; a partial failure on one object never aborts the others.
func (s *Session) Pull(ctx context.Context, objectIDs []string) ([]ObjectResult, error) {
	if err := s.send(&replicationpb.Request{Init: &replicationpb.InitMessage{
		DataproxyID: s.selfID.String(),
		ObjectIDs:   objectIDs,
	}}); err != nil {
		return nil, dataproxyerrs.ProtocolError.Wrap(err)
	}

	ledger := newLedger()
	results := make(chan ObjectResult, len(objectIDs))
	ledgerEvents := make(chan ledgerEvent, ledgerQueueCapacity)

	group, groupCtx := errgroup.WithContext(ctx)

	chunkChans := make(map[string]chan model.DataChunk)
	var chanMu sync.Mutex

	driverFor := func(objectID string, info *replicationpb.ObjectInfoMessage) chan model.DataChunk {
		chanMu.Lock()
		defer chanMu.Unlock()
		if ch, ok := chunkChans[objectID]; ok {
			return ch
		}
		ch := make(chan model.DataChunk, chunkQueueCapacity)
		chunkChans[objectID] = ch

		group.Go(func() error {
			loc, err := s.resolve(objectID)
			if err != nil {
				results <- ObjectResult{ObjectID: objectID, Err: dataproxyerrs.BackendWriteFailed.Wrap(err)}
				drain(ch)
				return nil
			}
			loc.RawContentLen = info.RawSize

			requestRetry := func(ctx context.Context, idx int64) error {
				return s.send(&replicationpb.Request{Error: &replicationpb.ErrorMessage{
					Kind:     replicationpb.ErrorRetryChunk,
					ObjectID: objectID,
					ChunkIdx: idx,
				}})
			}

			onAccepted := func(idx int64) {
				_ = s.send(&replicationpb.Request{ChunkAck: &replicationpb.ChunkAckMessage{ObjectID: objectID, ChunkIdx: idx}})
			}

			finalLoc, err := backend.LoadIntoBackend(groupCtx, s.log, s.adapter, loc, info.Chunks, info.BlockList, ch, requestRetry, onAccepted, s.metrics)
			if err != nil {
				results <- ObjectResult{ObjectID: objectID, Err: err}
				if msg := ToBatchError(objectID, 0, err); msg != nil {
					_ = s.send(&replicationpb.Request{Error: msg})
				}
				return nil
			}
			results <- ObjectResult{ObjectID: objectID, Location: finalLoc}
			return nil
		})
		return ch
	}

	group.Go(func() error {
		return s.demux(groupCtx, ledgerEvents, driverFor, chunkChans, &chanMu)
	})

	group.Go(func() error {
		return runLedgerTask(groupCtx, ledger, ledgerEvents)
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	for id, shortfall := range ledger.shortfalls() {
		s.log.Warn("object finished short of its announced chunk count",
			zap.String("object_id", id),
			zap.Int64("expected", shortfall.Expected),
			zap.Int64("received", shortfall.Received))
	}

	close(results)
	out := make([]ObjectResult, 0, len(objectIDs))
	seen := make(map[string]bool, len(objectIDs))
	for r := range results {
		out = append(out, r)
		seen[r.ObjectID] = true
	}
	for _, id := range objectIDs {
		if !seen[id] {
			out = append(out, ObjectResult{ObjectID: id, Err: dataproxyerrs.ReplicationIncomplete.New("peer finished without announcing object %s", id)})
		}
	}
	return out, nil
}

// ledgerEvent is what demux reports to the sync ledger task: either an
// object announcement or a chunk delivery, keeping ledger bookkeeping
// off the hot path of routing bytes to their driver.
type ledgerEvent struct {
	announce *replicationpb.ObjectInfoMessage
	ackChunk string // objectID
}

// runLedgerTask is the third cooperating task: it owns the ledger and
// does nothing but drain events demux reports, until demux closes the
// channel (session end).
func runLedgerTask(ctx context.Context, l *ledger, events <-chan ledgerEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.announce != nil {
				l.announce(ev.announce.ObjectID, ev.announce.Chunks)
			}
			if ev.ackChunk != "" {
				l.ackChunk(ev.ackChunk)
			}
		}
	}
}

// demux is the sole reader of the stream: it reads every inbound
// frame, routes it to the per-object chunk channel the driver
// goroutines consume, and reports bookkeeping events to the ledger
// task. It always closes the ledger event channel (ending the ledger
// task) on return. It also closes every open chunk channel (ending
// every driver) when the peer signals Finish or a Recv fails; when the
// context is canceled or a reply cannot be sent, it returns without
// closing them.
func (s *Session) demux(
	ctx context.Context,
	ledgerEvents chan<- ledgerEvent,
	driverFor func(string, *replicationpb.ObjectInfoMessage) chan model.DataChunk,
	chunkChans map[string]chan model.DataChunk,
	chanMu *sync.Mutex,
) error {
	defer close(ledgerEvents)

	for {
		resp, err := s.stream.Recv()
		if err != nil {
			closeAll(chunkChans, chanMu)
			return dataproxyerrs.ProtocolError.Wrap(err)
		}

		switch {
		case resp.ObjectInfo != nil:
			info := resp.ObjectInfo
			select {
			case ledgerEvents <- ledgerEvent{announce: info}:
			case <-ctx.Done():
				return ctx.Err()
			}
			driverFor(info.ObjectID, info)
			_ = s.send(&replicationpb.Request{InfoAck: &replicationpb.InfoAckMessage{ObjectID: info.ObjectID}})

		case resp.Chunk != nil:
			c := resp.Chunk
			chanMu.Lock()
			ch, ok := chunkChans[c.ObjectID]
			chanMu.Unlock()
			if !ok {
				// Chunk for an object we never got an ObjectInfo for:
				// tell the peer to restart that object rather than
				// silently dropping its bytes.
				if err := s.send(&replicationpb.Request{Error: &replicationpb.ErrorMessage{
					Kind:     replicationpb.ErrorRetryObjectID,
					ObjectID: c.ObjectID,
				}}); err != nil {
					return dataproxyerrs.ProtocolError.Wrap(err)
				}
				continue
			}
			select {
			case ch <- c.ToDataChunk():
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case ledgerEvents <- ledgerEvent{ackChunk: c.ObjectID}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case resp.Finish != nil:
			closeAll(chunkChans, chanMu)
			return nil
		}
	}
}

func closeAll(chunkChans map[string]chan model.DataChunk, chanMu *sync.Mutex) {
	chanMu.Lock()
	defer chanMu.Unlock()
	for id, ch := range chunkChans {
		close(ch)
		delete(chunkChans, id)
	}
}

func drain(ch chan model.DataChunk) {
	for range ch {
	}
}

func (s *Session) send(req *replicationpb.Request) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stream.Send(req)
}
