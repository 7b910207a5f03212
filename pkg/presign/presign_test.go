package presign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(t *testing.T, accessKeyID, secret string, signedAt time.Time, expires time.Duration) *http.Request {
	t.Helper()

	dateStr := signedAt.UTC().Format(dateLayout)
	scope := signedAt.UTC().Format("20060102") + "/us-east-1/s3/aws4_request"

	q := url.Values{}
	q.Set(amzAlgorithm, "AWS4-HMAC-SHA256")
	q.Set(amzCredential, accessKeyID+"/"+scope)
	q.Set(amzDate, dateStr)
	q.Set(amzExpires, "900")
	q.Set(amzSignedHeaders, "host")
	_ = expires

	req, err := http.NewRequest(http.MethodGet, "http://example.com/bucket/key?"+q.Encode(), nil)
	require.NoError(t, err)
	req.Host = "example.com"

	canonical := canonicalRequest(req, req.URL.Query())
	sts := stringToSign(dateStr, scope, canonical)
	key := deriveSigningKey(secret, scope)
	sig := hex.EncodeToString(hmacSHA256(key, sts))

	q.Set(amzSignature, sig)
	req.URL.RawQuery = q.Encode()
	return req
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest(t, "AKIDEXAMPLE", "secret", now, 15*time.Minute)

	v := New("us-east-1", "s3", func(id string) (string, bool) {
		assert.Equal(t, "AKIDEXAMPLE", id)
		return "secret", true
	})

	err := v.Verify(req, now.Add(time.Minute))
	require.NoError(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest(t, "AKIDEXAMPLE", "secret", now, 15*time.Minute)

	v := New("us-east-1", "s3", func(id string) (string, bool) { return "secret", true })

	err := v.Verify(req, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest(t, "AKIDEXAMPLE", "secret", now, 15*time.Minute)

	q := req.URL.Query()
	q.Set(amzSignature, strings.Repeat("0", 64))
	req.URL.RawQuery = q.Encode()

	v := New("us-east-1", "s3", func(id string) (string, bool) { return "secret", true })
	err := v.Verify(req, now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsUnknownAccessKey(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest(t, "AKIDEXAMPLE", "secret", now, 15*time.Minute)

	v := New("us-east-1", "s3", func(id string) (string, bool) { return "", false })
	err := v.Verify(req, now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsMissingParams(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com/bucket/key", nil)
	require.NoError(t, err)

	v := New("us-east-1", "s3", func(id string) (string, bool) { return "secret", true })
	err = v.Verify(req, time.Now())
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestHMACHelperAgreesWithStdlib(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write([]byte("v"))
	assert.Equal(t, mac.Sum(nil), hmacSHA256([]byte("k"), "v"))
}
