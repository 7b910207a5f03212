package s3request_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/dataproxy/pkg/s3request"
)

func TestParseRoot(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	req := s3request.Parse(r)
	require.True(t, req.IsRoot())
}

func TestParseBucket(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/mybucket", nil)
	req := s3request.Parse(r)
	require.True(t, req.IsBucket())
	require.Equal(t, "mybucket", req.Bucket)
}

func TestParseObject(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/proj/collection/dataset/obj.dat?partNumber=2", nil)
	req := s3request.Parse(r)
	require.False(t, req.IsRoot())
	require.False(t, req.IsBucket())
	require.Equal(t, "proj", req.Bucket)
	require.Equal(t, "collection/dataset/obj.dat", req.Key)
	require.Equal(t, "2", req.Query["partNumber"])
}
