package replication

import (
	"errors"

	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/replicationpb"
)

// ToBatchError classifies an internal failure into the client->server
// wire-level error frame that should carry it: a chunk validation
// failure asks the peer to resend just that chunk, a retry-exhausted
// object asks the peer to restart the whole object, anything else
// aborts the batch outright (spec §6's three ErrorKind values).
func ToBatchError(objectID string, chunkIdx int64, err error) *replicationpb.ErrorMessage {
	switch {
	case err == nil:
		return nil
	case dataproxyerrs.RetryExhausted.Has(err):
		return &replicationpb.ErrorMessage{Kind: replicationpb.ErrorRetryObjectID, ObjectID: objectID}
	case dataproxyerrs.ProtocolError.Has(err):
		return &replicationpb.ErrorMessage{Kind: replicationpb.ErrorRetryChunk, ObjectID: objectID, ChunkIdx: chunkIdx}
	default:
		return &replicationpb.ErrorMessage{Kind: replicationpb.ErrorAbort, ObjectID: objectID}
	}
}

// errAborted signals the session's outer loop should stop after an
// ErrorAbort frame, without itself carrying retryable context.
var errAborted = errors.New("replication: batch aborted")

// errPassesExhausted marks an object that was still failing after
// maxPassesPerBatch retries within a single scheduler tick.
var errPassesExhausted = errors.New("replication: retry passes exhausted for this tick")
