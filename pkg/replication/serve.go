package replication

import (
	"bytes"
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/replicationpb"
)

// maxObjectChunkRetries bounds how many times ServeSession will resend
// a chunk a puller claims it lost before giving up on that object and
// moving to the next one in the batch, mirroring the puller-side
// maxChunkRetries in pkg/backend/writer.go.
const maxObjectChunkRetries = 5

// SourceLookup resolves a requested object ID to its on-disk Location
// and the blocklist the writer pipeline used to footer it, so
// ServeSession can stream the same bytes and framing a local read
// would produce.
type SourceLookup func(objectID string) (loc *model.Location, blocklist []byte, err error)

// ServeSession drives the serving side of one pull-replication stream
// (spec §6): it reads the peer's Init, then for each requested object
// reads it whole from adapter, splits it into content-defined chunks
// with backend.ChunkObject, and streams ObjectInfo followed by Chunk
// frames — resending a chunk on RetryChunk, abandoning the current
// object on any other per-object Error frame (RetryObjectID included),
// and stopping on Abort — before finally sending Finish.
//
// One object is served at a time; spec §5's concurrency budget is
// about the puller fanning out across many in-flight objects, not
// about a single server racing ahead of a slow peer.
func ServeSession(ctx context.Context, stream replicationpb.ServerStream, adapter backend.Adapter, lookup SourceLookup, log *zap.Logger) error {
	req, err := stream.Recv()
	if err != nil {
		return dataproxyerrs.ProtocolError.Wrap(err)
	}
	if req.Init == nil {
		return dataproxyerrs.ProtocolError.New("expected Init frame first, got %+v", req)
	}

	for _, objectID := range req.Init.ObjectIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := serveObject(ctx, stream, adapter, lookup, objectID, log); err != nil {
			if errors.Is(err, errAborted) {
				log.Warn("peer aborted replication session", zap.String("object_id", objectID))
				break
			}
			log.Warn("failed to serve object", zap.String("object_id", objectID), zap.Error(err))
		}
	}

	return stream.Send(&replicationpb.Response{Finish: &replicationpb.FinishMessage{}})
}

func serveObject(ctx context.Context, stream replicationpb.ServerStream, adapter backend.Adapter, lookup SourceLookup, objectID string, log *zap.Logger) error {
	loc, blocklist, err := lookup(objectID)
	if err != nil {
		return dataproxyerrs.NoSuchKey.Wrap(err)
	}

	var buf bytes.Buffer
	if err := adapter.GetObject(ctx, loc, nil, &buf); err != nil {
		return err
	}

	chunks, err := backend.ChunkObject(objectID, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}

	if err := stream.Send(&replicationpb.Response{ObjectInfo: &replicationpb.ObjectInfoMessage{
		ObjectID:  objectID,
		Chunks:    int64(len(chunks)),
		BlockList: blocklist,
		RawSize:   int64(buf.Len()),
	}}); err != nil {
		return dataproxyerrs.ProtocolError.Wrap(err)
	}
	if err := recvAck(stream, objectID); err != nil {
		return err
	}

	retries := 0
	for i := 0; i < len(chunks); {
		chunk := chunks[i]
		if err := stream.Send(&replicationpb.Response{Chunk: &replicationpb.ChunkMessage{
			ObjectID: chunk.ObjectID,
			ChunkIdx: chunk.Index,
			Data:     chunk.Data,
			Checksum: chunk.Checksum,
		}}); err != nil {
			return dataproxyerrs.ProtocolError.Wrap(err)
		}

		advance, err := awaitChunkOutcome(stream, objectID, chunk.Index)
		if err != nil {
			return err
		}
		if advance {
			retries = 0
			i++
			continue
		}

		retries++
		if retries > maxObjectChunkRetries {
			return dataproxyerrs.RetryExhausted.New("chunk %d of %s exceeded retry budget", chunk.Index, objectID)
		}
	}

	return nil
}

// recvAck waits for the puller's InfoAck before the first chunk is
// sent, so a puller that aborts immediately after ObjectInfo never
// sees chunk traffic for an object it already gave up on.
func recvAck(stream replicationpb.ServerStream, objectID string) error {
	req, err := stream.Recv()
	if err != nil {
		return dataproxyerrs.ProtocolError.Wrap(err)
	}
	if req.InfoAck == nil || req.InfoAck.ObjectID != objectID {
		return dataproxyerrs.ProtocolError.New("expected InfoAck for %s, got %+v", objectID, req)
	}
	return nil
}

// awaitChunkOutcome reads the puller's response to one Chunk frame: a
// ChunkAck advances to the next chunk, a RetryChunk resends the same
// one (serveObject tracks the retry budget across calls), an Abort
// frame stops the whole serving loop via errAborted (ServeSession
// moves on to nothing further rather than the next requested object),
// and any other Error frame just abandons this one object.
func awaitChunkOutcome(stream replicationpb.ServerStream, objectID string, idx int64) (advance bool, err error) {
	req, err := stream.Recv()
	if err != nil {
		return false, dataproxyerrs.ProtocolError.Wrap(err)
	}

	switch {
	case req.ChunkAck != nil && req.ChunkAck.ObjectID == objectID && req.ChunkAck.ChunkIdx == idx:
		return true, nil

	case req.Error != nil && req.Error.Kind == replicationpb.ErrorRetryChunk && req.Error.ObjectID == objectID:
		return false, nil // resend the same chunk; serveObject's loop index stays put

	case req.Error != nil && req.Error.Kind == replicationpb.ErrorAbort:
		return false, errAborted

	case req.Error != nil:
		return false, dataproxyerrs.BackendWriteFailed.New("peer aborted object %s: kind=%d", objectID, req.Error.Kind)

	default:
		return false, dataproxyerrs.ProtocolError.New("unexpected frame awaiting chunk ack for %s[%d]: %+v", objectID, idx, req)
	}
}
