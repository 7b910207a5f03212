package replication

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/metrics"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/replicationpb"
)

// maxPassesPerBatch bounds how many times the scheduler will retry the
// still-failing subset of a batch before giving up on it for this
// tick, so a peer that's permanently down can't spin the scheduler
// forever.
const maxPassesPerBatch = 20

// PendingSource reports, for a remote endpoint, the object IDs this
// proxy still needs to pull from it.
type PendingSource func(endpoint model.ID) []string

// Dialer opens a fresh bidirectional stream to a remote endpoint. The
// storj.io/drpc-backed implementation lives in pkg/replicationsvc;
// tests use an in-memory pipe.
type Dialer func(ctx context.Context, endpoint model.ID) (replicationpb.Stream, error)

// Scheduler ticks on an interval, and for every known endpoint with
// pending objects, runs a Session.Pull batch, retrying only the
// objects that failed on the previous pass.
type Scheduler struct {
	selfID    model.ID
	adapter   backend.Adapter
	cache     cache.Cache
	resolve   LocationResolver
	pending   PendingSource
	dial      Dialer
	endpoints func() []model.ID
	tick      time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// NewScheduler wires the scheduler's collaborators. endpoints lists
// the remote proxies known to hold objects this one might need. m may
// be nil (tests that don't care about instrumentation).
func NewScheduler(
	selfID model.ID,
	adapter backend.Adapter,
	c cache.Cache,
	resolve LocationResolver,
	pending PendingSource,
	dial Dialer,
	endpoints func() []model.ID,
	tick time.Duration,
	log *zap.Logger,
	m *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		selfID: selfID, adapter: adapter, cache: c, resolve: resolve,
		pending: pending, dial: dial, endpoints: endpoints,
		tick: tick, log: log, metrics: m,
	}
}

// Run blocks, driving one pass over every endpoint per tick, until ctx
// is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// RunOnce drives a single pass over every endpoint, for callers (or
// the `replicate-once` CLI subcommand) that don't want the ticking
// loop.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	for _, endpoint := range s.endpoints() {
		objectIDs := s.pending(endpoint)
		if len(objectIDs) == 0 {
			continue
		}
		s.pullBatch(ctx, endpoint, objectIDs)
	}
}

// pullBatch dials a fresh session against endpoint for each of up to
// maxPassesPerBatch rounds, each round retrying only the objects that
// failed on the one before.
func (s *Scheduler) pullBatch(ctx context.Context, endpoint model.ID, objectIDs []string) []ObjectResult {
	remaining := objectIDs
	var final []ObjectResult

	for pass := 0; pass < maxPassesPerBatch && len(remaining) > 0; pass++ {
		stream, err := s.dial(ctx, endpoint)
		if err != nil {
			s.log.Warn("replication dial failed", zap.String("endpoint", endpoint.String()), zap.Error(err))
			if s.metrics != nil {
				s.metrics.ReplicationBatchesAborted.Inc()
			}
			return final
		}

		session := NewSession(stream, s.selfID, s.adapter, s.resolve, s.log, s.metrics)
		if s.metrics != nil {
			s.metrics.ReplicationSessionsActive.Inc()
		}
		results, err := session.Pull(ctx, remaining)
		if s.metrics != nil {
			s.metrics.ReplicationSessionsActive.Dec()
		}
		_ = stream.CloseSend()
		if err != nil {
			s.log.Warn("replication session failed", zap.String("endpoint", endpoint.String()), zap.Error(err))
			if s.metrics != nil {
				s.metrics.ReplicationBatchesAborted.Inc()
			}
			return final
		}

		var retry []string
		for _, r := range results {
			if r.Err != nil {
				retry = append(retry, r.ObjectID)
				continue
			}
			final = append(final, r)
			s.commit(r)
		}
		remaining = retry
	}

	for _, id := range remaining {
		final = append(final, ObjectResult{ObjectID: id, Err: errPassesExhausted})
	}
	return final
}

// commit persists a successful pull's outcome (spec §4.6: upsert
// (object, Some(location)) into the cache once the backend driver
// reports success) and records it in the replication metrics.
func (s *Scheduler) commit(r ObjectResult) {
	if s.metrics != nil {
		s.metrics.ReplicationObjectsPulled.Inc()
	}
	if s.cache == nil || r.Location == nil {
		return
	}
	id, err := model.ParseID(r.ObjectID)
	if err != nil {
		s.log.Warn("replicated object id did not parse, not caching location",
			zap.String("object_id", r.ObjectID), zap.Error(err))
		return
	}
	s.cache.UpsertLocation(id, r.Location)
}
