package backend

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionTransformRoundTrips(t *testing.T) {
	capture := &captureTransform{}
	c := newCompressionTransform(capture)

	plaintext := bytes.Repeat([]byte("compress me please compress me please "), 500)
	_, err := c.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, capture.closed)

	r := s2.NewReader(bytes.NewReader(capture.Bytes()))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}
