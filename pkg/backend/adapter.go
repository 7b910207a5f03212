// Package backend declares the abstract object-store surface (C8) the
// replication engine and the writer pipeline consume, and implements
// the writer pipeline itself (C7): per-object streaming chunk
// validation feeding a transform chain that terminates in a buffered
// multipart S3 sink.
package backend

import (
	"context"
	"io"

	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// ByteRange is an inclusive byte range as it appears on the wire (see
// spec §9's note on the +1 normalization between inclusive wire ranges
// and the footer parser's half-open internal ranges).
type ByteRange struct {
	Start, End int64
}

// Length returns the number of bytes the inclusive range covers.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// PartETag is one completed multipart upload part.
type PartETag struct {
	PartNumber int32
	ETag       string // hex, no dashes, per spec §4.8
}

// Adapter is the abstract object-store surface the core consumes. The
// concrete AWS SDK v2 implementation lives in pkg/backend/s3backend.
type Adapter interface {
	PutObject(ctx context.Context, r io.Reader, loc *model.Location, contentLen int64) error
	GetObject(ctx context.Context, loc *model.Location, rng *ByteRange, w io.Writer) error
	HeadObject(ctx context.Context, loc *model.Location) (int64, error)

	InitMultipartUpload(ctx context.Context, loc *model.Location) (uploadID string, err error)
	UploadPart(ctx context.Context, r io.Reader, loc *model.Location, uploadID string, contentLen int64, partNumber int32) (PartETag, error)
	FinishMultipartUpload(ctx context.Context, loc *model.Location, parts []PartETag, uploadID string) error

	CreateBucket(ctx context.Context, bucket string) error
	CheckAndCreateBucket(ctx context.Context, bucket string) error

	DeleteObject(ctx context.Context, loc *model.Location) error

	InitializeLocation(ctx context.Context, obj *model.Object, rawSize *int64, hint *string, isCompressed bool) (*model.Location, error)
}
