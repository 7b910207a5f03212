package backend

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/restic/chunker"

	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// ChunkObject splits a freshly-ingested object into content-defined
// chunks for the writer pipeline, using restic's rolling-hash chunker
// rather than fixed-size slicing so that small edits to a previously
// seen object reuse most of its chunk boundaries on re-ingestion. This
// is the producer side of chunking described in spec §6 — distinct
// from the replication engine, which only ever consumes DataChunks
// already framed by a peer.
func ChunkObject(objectID string, r io.Reader) ([]model.DataChunk, error) {
	c := chunker.New(r, chunker.Pol(0x3DA3358B4DC173))

	var chunks []model.DataChunk
	buf := make([]byte, chunker.MaxSize)
	var idx int64
	for {
		piece, err := c.Next(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dataproxyerrs.InternalError.Wrap(err)
		}

		data := make([]byte, len(piece.Data))
		copy(data, piece.Data)
		sum := md5.Sum(data)

		chunks = append(chunks, model.DataChunk{
			ObjectID: objectID,
			Index:    idx,
			Data:     data,
			Checksum: hex.EncodeToString(sum[:]),
		})
		idx++
	}
	return chunks, nil
}
