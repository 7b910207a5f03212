package backend

import "github.com/klauspost/compress/s2"

// compressionTransform runs an s2 stream encoder in front of the next
// stage when Location.IsCompressed is set (§4.7's optional compression
// stage, gated the same way the encryption stage is gated on
// Location.IsEncrypted).
type compressionTransform struct {
	next transform
	w    *s2.Writer
}

// transformWriter adapts a transform (io.Writer + Close) to the
// io.Writer s2.NewWriter wants, without exposing transform's Close to
// s2 (s2.Writer.Close only flushes the frame, it must not propagate to
// the next pipeline stage).
type transformWriter struct{ t transform }

func (w transformWriter) Write(p []byte) (int, error) { return w.t.Write(p) }

func newCompressionTransform(next transform) *compressionTransform {
	return &compressionTransform{next: next, w: s2.NewWriter(transformWriter{next})}
}

func (c *compressionTransform) Write(p []byte) (int, error) { return c.w.Write(p) }

func (c *compressionTransform) Close() error {
	if err := c.w.Close(); err != nil {
		return err
	}
	return c.next.Close()
}
