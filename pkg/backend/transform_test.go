package backend

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureTransform is a terminal transform that just buffers whatever
// reaches it, for asserting chain output in isolation.
type captureTransform struct {
	bytes.Buffer
	closed bool
}

func (c *captureTransform) Close() error { c.closed = true; return nil }

func TestSizeProbeCountsBytes(t *testing.T) {
	capture := &captureTransform{}
	probe := newSizeProbe(capture)
	n, err := probe.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, probe.Close())
	assert.Equal(t, int64(5), probe.Size())
	assert.True(t, capture.closed)
}

func TestHashingTransformForwardsAndSums(t *testing.T) {
	capture := &captureTransform{}
	h := newHashingTransform(capture)
	_, err := h.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, "data", capture.String())
	assert.Len(t, h.Sum(), 64) // hex-encoded sha256
}

func TestChachaTransformRoundTripsThroughBlockBoundary(t *testing.T) {
	capture := &captureTransform{}
	key := bytes.Repeat([]byte{0x07}, 32)
	enc, err := newChachaTransform(capture, key)
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte{0xAB}, encryptionBlockSize+100)
	_, err = enc.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	assert.NotEqual(t, plaintext, capture.Bytes())

	// decrypting with a fresh cipher at counter 0 must recover the input,
	// since a fresh chachaTransform with the same key produces the same
	// keystream, block counter schedule included.
	dec := &captureTransform{}
	decrypt, err := newChachaTransform(dec, key)
	require.NoError(t, err)
	_, err = decrypt.Write(capture.Bytes())
	require.NoError(t, err)
	require.NoError(t, decrypt.Close())
	assert.Equal(t, plaintext, dec.Bytes())
}

func TestFooterTransformAppendsBlocklistOnClose(t *testing.T) {
	capture := &captureTransform{}
	blocklist := []byte{1, 2, 3, 4}
	f := newFooterTransform(capture, blocklist)
	_, err := f.Write([]byte("body"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out := capture.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("body")))
	assert.Greater(t, len(out), len("body")+len(blocklist))
}

func TestFooterTransformOmittedWithoutBlocklist(t *testing.T) {
	capture := &captureTransform{}
	f := newFooterTransform(capture, nil)
	_, err := f.Write([]byte("body"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "body", capture.String())
}
