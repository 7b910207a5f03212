// Package replicationpb defines the pull-replication wire messages
// from spec §6, independent of the transport that carries them. A
// production deployment carries these over storj.io/drpc (see
// pkg/replicationsvc); tests drive the engine directly over an
// in-memory pipe (see pkg/replication/pipestream_test.go).
package replicationpb

import "github.com/storj-thirdparty/dataproxy/pkg/model"

// ErrorKind is the closed set of client->server error frames.
type ErrorKind int

const (
	ErrorRetryObjectID ErrorKind = iota
	ErrorRetryChunk
	ErrorAbort
)

// Request is one client->server frame on the pull-replication stream.
type Request struct {
	Init     *InitMessage
	InfoAck  *InfoAckMessage
	ChunkAck *ChunkAckMessage
	Error    *ErrorMessage
	Finish   *FinishMessage
}

// Response is one server->client frame on the pull-replication stream.
type Response struct {
	ObjectInfo *ObjectInfoMessage
	Chunk      *ChunkMessage
	Finish     *FinishMessage
}

// InitMessage is the first outbound frame of a pull session: the
// client names itself and the objects it wants.
type InitMessage struct {
	DataproxyID string
	ObjectIDs   []string
}

// ObjectInfoMessage announces an object's shape before its chunks.
type ObjectInfoMessage struct {
	ObjectID  string
	Chunks    int64
	BlockList []byte
	RawSize   int64
}

// ChunkMessage carries one object's bytes at a given index.
type ChunkMessage struct {
	ObjectID string
	ChunkIdx int64
	Data     []byte
	Checksum string
}

// InfoAckMessage acknowledges a received ObjectInfoMessage.
type InfoAckMessage struct {
	ObjectID string
}

// ChunkAckMessage acknowledges a received ChunkMessage.
type ChunkAckMessage struct {
	ObjectID string
	ChunkIdx int64
}

// ErrorMessage is a client->server protocol-level signal.
type ErrorMessage struct {
	Kind     ErrorKind
	ObjectID string // set for RetryObjectId and RetryChunk
	ChunkIdx int64  // set for RetryChunk
}

// FinishMessage closes out a direction of the stream.
type FinishMessage struct{}

// ToDataChunk adapts a wire ChunkMessage into the model.DataChunk the
// backend writer pipeline consumes.
func (c *ChunkMessage) ToDataChunk() model.DataChunk {
	return model.DataChunk{
		ObjectID: c.ObjectID,
		Index:    c.ChunkIdx,
		Data:     c.Data,
		Checksum: c.Checksum,
	}
}
