package replicationsvc

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/replication"
)

// readOnlyAdapter serves fixed bytes for GetObject and stashes
// whatever UploadPart writes, enough to drive one pull end to end over
// a real TCP-backed drpc connection.
type readOnlyAdapter struct {
	backend.Adapter
	source map[string][]byte
	buf    bytes.Buffer
}

func (a *readOnlyAdapter) GetObject(ctx context.Context, loc *model.Location, rng *backend.ByteRange, w io.Writer) error {
	_, err := w.Write(a.source[loc.Path])
	return err
}
func (a *readOnlyAdapter) InitMultipartUpload(ctx context.Context, loc *model.Location) (string, error) {
	return loc.Path, nil
}
func (a *readOnlyAdapter) UploadPart(ctx context.Context, r io.Reader, loc *model.Location, uploadID string, n int64, partNumber int32) (backend.PartETag, error) {
	_, err := io.Copy(&a.buf, r)
	return backend.PartETag{PartNumber: partNumber, ETag: "etag"}, err
}
func (a *readOnlyAdapter) FinishMultipartUpload(ctx context.Context, loc *model.Location, parts []backend.PartETag, uploadID string) error {
	return nil
}

func TestDialAndServeRoundTripOneObject(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	source := &readOnlyAdapter{source: map[string][]byte{"obj-1": bytes.Repeat([]byte("a"), 64)}}
	lookup := func(objectID string) (*model.Location, []byte, error) {
		return &model.Location{Bucket: "b", Path: objectID}, nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- Serve(ctx, lis, source, lookup, zaptest.NewLogger(t)) }()

	sink := &readOnlyAdapter{}
	dial := NewDialer(func(model.ID) (string, error) { return lis.Addr().String(), nil })
	stream, err := dial(ctx, model.ID{})
	require.NoError(t, err)

	session := replication.NewSession(stream, model.ID{}, sink, func(objectID string) (*model.Location, error) {
		return &model.Location{Bucket: "b", Path: objectID}, nil
	}, zaptest.NewLogger(t), nil)

	results, err := session.Pull(ctx, []string{"obj-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 64, sink.buf.Len())

	cancel()
	<-serveErr
}
