package backend

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/metrics"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// maxChunkRetries is the number of times the validator will ask for a
// chunk to be resent before giving up (§4.7).
const maxChunkRetries = 5

// chunkRetryBackoff is the pause before each retry request. A var, not
// a const, so tests can shrink it.
var chunkRetryBackoff = 5 * time.Second

// SetChunkRetryBackoffForTesting overrides the validator's retry pause
// and returns a func that restores the previous value. Other packages'
// tests that exercise LoadIntoBackend's retry path call this instead
// of waiting out the real 5s backoff.
func SetChunkRetryBackoffForTesting(d time.Duration) (restore func()) {
	prev := chunkRetryBackoff
	chunkRetryBackoff = d
	return func() { chunkRetryBackoff = prev }
}

// RequestRetry asks the chunk's producer to resend the chunk at idx.
type RequestRetry func(ctx context.Context, idx int64) error

// LoadIntoBackend drives the C7 writer pipeline: it reads chunks off
// the channel in order, validating each one's index and checksum
// before handing its bytes to the transform chain, and finalizes the
// Location once the channel closes having seen every expected chunk.
//
// The validator owns retry policy: an out-of-order or checksum-mismatched
// chunk triggers requestRetry and a chunkRetryBackoff pause, up to
// maxChunkRetries times, after which the object is abandoned with
// dataproxyerrs.RetryExhausted. onAccepted, if non-nil, is called with
// each chunk's index once it has passed validation and been written to
// the transform chain, callers use it to ack acceptance back to
// whatever is producing the chunks. m may be nil (tests that don't
// care about instrumentation).
func LoadIntoBackend(
	ctx context.Context,
	log *zap.Logger,
	adapter Adapter,
	loc *model.Location,
	expectedChunks int64,
	blocklist []byte,
	chunks <-chan model.DataChunk,
	requestRetry RequestRetry,
	onAccepted func(idx int64),
	m *metrics.Metrics,
) (*model.Location, error) {
	uploadID, err := adapter.InitMultipartUpload(ctx, loc)
	if err != nil {
		return nil, dataproxyerrs.BackendWriteFailed.Wrap(err)
	}

	sink := newMultipartSink(ctx, adapter, loc, uploadID)
	chain, err := buildChain(sink, loc, blocklist)
	if err != nil {
		return nil, dataproxyerrs.BackendWriteFailed.Wrap(err)
	}

	var nextIndex int64
	var received int64
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return nil, dataproxyerrs.BackendWriteFailed.Wrap(ctx.Err())
		case chunk, ok := <-chunks:
			if !ok {
				if received < expectedChunks {
					return nil, dataproxyerrs.ReplicationIncomplete.New("got %d of %d chunks", received, expectedChunks)
				}
				if err := chain.head.Close(); err != nil {
					return nil, dataproxyerrs.BackendWriteFailed.Wrap(err)
				}
				loc.DiskContentLen = chain.probe.Size()
				loc.DiskHash = chain.hash.Sum()
				return loc, nil
			}

			if !validChunk(chunk, nextIndex) {
				retries++
				if retries > maxChunkRetries {
					if m != nil {
						m.WriteFailuresTotal.Inc()
					}
					return nil, dataproxyerrs.RetryExhausted.New("chunk %d failed validation after %d retries", nextIndex, maxChunkRetries)
				}
				log.Warn("chunk failed validation, requesting retry",
					zap.Int64("expected_index", nextIndex),
					zap.Int64("got_index", chunk.Index),
					zap.Int("attempt", retries))
				if m != nil {
					m.ChunkRetriesTotal.Inc()
				}
				time.Sleep(chunkRetryBackoff)
				if err := requestRetry(ctx, nextIndex); err != nil {
					return nil, dataproxyerrs.BackendWriteFailed.Wrap(err)
				}
				continue
			}

			retries = 0
			if _, err := chain.head.Write(chunk.Data); err != nil {
				return nil, dataproxyerrs.BackendWriteFailed.Wrap(err)
			}
			if m != nil {
				m.ChunksWritten.Inc()
				m.BytesWrittenTotal.Add(float64(len(chunk.Data)))
			}
			if onAccepted != nil {
				onAccepted(chunk.Index)
			}
			nextIndex++
			received++
		}
	}
}

// validChunk enforces ordering and a checksum match against the
// chunk's declared MD5 digest.
func validChunk(c model.DataChunk, expectedIndex int64) bool {
	if c.Index != expectedIndex {
		return false
	}
	if c.Checksum == "" {
		return true
	}
	sum := md5.Sum(c.Data)
	return hex.EncodeToString(sum[:]) == c.Checksum
}
