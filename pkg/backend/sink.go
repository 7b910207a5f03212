package backend

import (
	"bytes"
	"context"

	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// sinkPartSize is the buffering threshold before a part is flushed to
// the backend: small enough to bound memory per in-flight object,
// large enough to stay above most backends' multipart minimum.
const sinkPartSize = 8 * 1024 * 1024

// multipartSink is the innermost transform stage (§4.7 step 5): it
// buffers whatever the chain above it produced and flushes
// sinkPartSize-sized parts to the backend's multipart upload, closing
// out the upload on Close.
type multipartSink struct {
	ctx        context.Context
	adapter    Adapter
	loc        *model.Location
	uploadID   string
	buf        []byte
	partNumber int32
	parts      []PartETag
}

func newMultipartSink(ctx context.Context, adapter Adapter, loc *model.Location, uploadID string) *multipartSink {
	return &multipartSink{
		ctx:      ctx,
		adapter:  adapter,
		loc:      loc,
		uploadID: uploadID,
		buf:      make([]byte, 0, sinkPartSize),
	}
}

func (s *multipartSink) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		room := sinkPartSize - len(s.buf)
		if room > len(p) {
			room = len(p)
		}
		s.buf = append(s.buf, p[:room]...)
		p = p[room:]
		if len(s.buf) == sinkPartSize {
			if err := s.flush(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

func (s *multipartSink) flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	s.partNumber++
	etag, err := s.adapter.UploadPart(s.ctx, bytes.NewReader(s.buf), s.loc, s.uploadID, int64(len(s.buf)), s.partNumber)
	if err != nil {
		return dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	s.parts = append(s.parts, etag)
	s.buf = s.buf[:0]
	return nil
}

func (s *multipartSink) Close() error {
	if err := s.flush(); err != nil {
		return err
	}
	if err := s.adapter.FinishMultipartUpload(s.ctx, s.loc, s.parts, s.uploadID); err != nil {
		return dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return nil
}
