package backend

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// fakeAdapter is an in-memory Adapter good enough to drive the writer
// pipeline end to end without touching S3.
type fakeAdapter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (f *fakeAdapter) PutObject(ctx context.Context, r io.Reader, loc *model.Location, n int64) error {
	panic("unused")
}
func (f *fakeAdapter) GetObject(ctx context.Context, loc *model.Location, rng *ByteRange, w io.Writer) error {
	panic("unused")
}
func (f *fakeAdapter) HeadObject(ctx context.Context, loc *model.Location) (int64, error) {
	panic("unused")
}

func (f *fakeAdapter) InitMultipartUpload(ctx context.Context, loc *model.Location) (string, error) {
	return "upload-1", nil
}

func (f *fakeAdapter) UploadPart(ctx context.Context, r io.Reader, loc *model.Location, uploadID string, n int64, partNumber int32) (PartETag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := io.Copy(&f.buf, r); err != nil {
		return PartETag{}, err
	}
	return PartETag{PartNumber: partNumber, ETag: "etag"}, nil
}

func (f *fakeAdapter) FinishMultipartUpload(ctx context.Context, loc *model.Location, parts []PartETag, uploadID string) error {
	f.closed = true
	return nil
}

func (f *fakeAdapter) CreateBucket(ctx context.Context, bucket string) error         { return nil }
func (f *fakeAdapter) CheckAndCreateBucket(ctx context.Context, bucket string) error { return nil }
func (f *fakeAdapter) DeleteObject(ctx context.Context, loc *model.Location) error   { return nil }
func (f *fakeAdapter) InitializeLocation(ctx context.Context, obj *model.Object, rawSize *int64, hint *string, isCompressed bool) (*model.Location, error) {
	panic("unused")
}

func init() {
	chunkRetryBackoff = time.Millisecond
}

func checksumOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestLoadIntoBackendHappyPath(t *testing.T) {
	adapter := &fakeAdapter{}
	loc := &model.Location{Bucket: "b", Path: "p"}
	chunks := make(chan model.DataChunk, 3)
	chunks <- model.DataChunk{ObjectID: "o", Index: 0, Data: []byte("hello "), Checksum: checksumOf([]byte("hello "))}
	chunks <- model.DataChunk{ObjectID: "o", Index: 1, Data: []byte("world"), Checksum: checksumOf([]byte("world"))}
	close(chunks)

	got, err := LoadIntoBackend(context.Background(), zaptest.NewLogger(t), adapter, loc, 2, nil, chunks, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len("hello world")), got.DiskContentLen)
	assert.NotEmpty(t, got.DiskHash)
	assert.Equal(t, "hello world", adapter.buf.String())
	assert.True(t, adapter.closed)
}

func TestLoadIntoBackendRetriesOutOfOrderChunk(t *testing.T) {
	adapter := &fakeAdapter{}
	loc := &model.Location{Bucket: "b", Path: "p"}
	chunks := make(chan model.DataChunk, 2)
	// index 1 arrives before index 0: one bad frame, then the correct resend.
	chunks <- model.DataChunk{ObjectID: "o", Index: 1, Data: []byte("x")}
	chunks <- model.DataChunk{ObjectID: "o", Index: 0, Data: []byte("ok"), Checksum: checksumOf([]byte("ok"))}
	close(chunks)

	var retried int64 = -1
	requestRetry := func(ctx context.Context, idx int64) error {
		retried = idx
		return nil
	}

	got, err := LoadIntoBackend(context.Background(), zaptest.NewLogger(t), adapter, loc, 1, nil, chunks, requestRetry, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), retried)
	assert.Equal(t, "ok", adapter.buf.String())
	_ = got
}

func TestLoadIntoBackendRetryExhaustionAborts(t *testing.T) {
	adapter := &fakeAdapter{}
	loc := &model.Location{Bucket: "b", Path: "p"}
	chunks := make(chan model.DataChunk, maxChunkRetries+2)
	for i := 0; i < maxChunkRetries+1; i++ {
		chunks <- model.DataChunk{ObjectID: "o", Index: 1, Data: []byte("bad")}
	}
	close(chunks)

	requestRetry := func(ctx context.Context, idx int64) error { return nil }

	_, err := LoadIntoBackend(context.Background(), zaptest.NewLogger(t), adapter, loc, 1, nil, chunks, requestRetry, nil, nil)
	require.Error(t, err)
	assert.True(t, dataproxyerrs.RetryExhausted.Has(err))
}

func TestLoadIntoBackendReplicationIncomplete(t *testing.T) {
	adapter := &fakeAdapter{}
	loc := &model.Location{Bucket: "b", Path: "p"}
	chunks := make(chan model.DataChunk, 1)
	chunks <- model.DataChunk{ObjectID: "o", Index: 0, Data: []byte("a"), Checksum: checksumOf([]byte("a"))}
	close(chunks)

	_, err := LoadIntoBackend(context.Background(), zaptest.NewLogger(t), adapter, loc, 5, nil, chunks, nil, nil, nil)
	require.Error(t, err)
}

func TestLoadIntoBackendEncryptedAndCompressed(t *testing.T) {
	adapter := &fakeAdapter{}
	key := bytes.Repeat([]byte{0x42}, 32)
	loc := &model.Location{Bucket: "b", Path: "p", IsEncrypted: true, IsCompressed: true, EncryptionKey: key}
	chunks := make(chan model.DataChunk, 1)
	payload := []byte("round trip me through compression and encryption")
	chunks <- model.DataChunk{ObjectID: "o", Index: 0, Data: payload, Checksum: checksumOf(payload)}
	close(chunks)

	got, err := LoadIntoBackend(context.Background(), zaptest.NewLogger(t), adapter, loc, 1, nil, chunks, nil, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, got.DiskHash)
	assert.NotEqual(t, string(payload), adapter.buf.String())
}

func TestChunkObjectRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 20000)
	chunks, err := ChunkObject("obj-1", bytes.NewReader(data))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var reassembled []byte
	for i, c := range chunks {
		assert.Equal(t, int64(i), c.Index)
		sum := md5.Sum(c.Data)
		assert.Equal(t, hex.EncodeToString(sum[:]), c.Checksum)
		reassembled = append(reassembled, c.Data...)
	}
	assert.Equal(t, data, reassembled)
}
