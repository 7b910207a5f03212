// Package httpgw is the HTTP boundary (C1) in front of the Access
// Gate: it parses an inbound S3 request, resolves the caller's
// credentials, and dispatches GET/PUT bodies to the backend adapter
// once the gate has cleared the request.
package httpgw

import (
	"encoding/xml"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/gate"
	"github.com/storj-thirdparty/dataproxy/pkg/metrics"
	"github.com/storj-thirdparty/dataproxy/pkg/s3request"
	"github.com/storj-thirdparty/dataproxy/pkg/token"
)

// sigV4Credential pulls the access key id out of a SigV4 Authorization
// header's Credential=<key>/<scope> component.
var sigV4Credential = regexp.MustCompile(`Credential=([^/,]+)/`)

// Handler is the top-level http.Handler for the S3-compatible surface.
type Handler struct {
	Gate    *gate.Gate
	Tokens  *token.Engine
	Adapter backend.Adapter
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := s3request.Parse(r)
	creds := h.extractCredentials(r)

	result, err := h.Gate.CheckAccess(req, creds)
	if err != nil {
		h.writeError(w, req, err)
		h.observe(req.Method, err, start)
		return
	}

	for k, v := range result.CORSHeaders {
		w.Header().Set(k, v)
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		err = h.handleGet(w, r, result)
	case http.MethodPut:
		err = h.handlePut(w, r, result)
	case http.MethodDelete:
		err = h.Adapter.DeleteObject(r.Context(), result.Location)
	default:
		w.WriteHeader(http.StatusOK)
	}

	if err != nil {
		h.writeError(w, req, err)
	}
	h.observe(req.Method, err, start)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, result *gate.CheckAccessResult) error {
	if result.Location == nil {
		w.WriteHeader(http.StatusNotFound)
		return nil
	}
	var rng *backend.ByteRange
	if hdr := r.Header.Get("Range"); hdr != "" {
		if parsed, ok := parseRangeHeader(hdr); ok {
			rng = &parsed
		}
	}
	if r.Method == http.MethodHead {
		n, err := h.Adapter.HeadObject(r.Context(), result.Location)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
		return nil
	}
	return h.Adapter.GetObject(r.Context(), result.Location, rng, w)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, result *gate.CheckAccessResult) error {
	if result.Location == nil {
		return nil
	}
	return h.Adapter.PutObject(r.Context(), r.Body, result.Location, r.ContentLength)
}

func (h *Handler) extractCredentials(r *http.Request) *gate.Credentials {
	auth := r.Header.Get("Authorization")
	creds := &gate.Credentials{}

	if m := sigV4Credential.FindStringSubmatch(auth); len(m) == 2 {
		creds.AccessKey = m[1]
	} else if key := r.URL.Query().Get("X-Amz-Credential"); key != "" {
		if scope := strings.SplitN(key, "/", 2); len(scope) > 0 {
			creds.AccessKey = scope[0]
		}
	}

	if strings.HasPrefix(auth, "Bearer ") {
		if v, err := h.Tokens.Verify(strings.TrimPrefix(auth, "Bearer ")); err == nil {
			creds.UserID = v.Subject
			creds.TokenID = v.TokenID
		}
	}

	if creds.AccessKey == "" && creds.UserID == "" {
		return nil
	}
	return creds
}

// s3Error is the minimal XML error body the S3 API contract expects.
type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func (h *Handler) writeError(w http.ResponseWriter, req *s3request.Request, err error) {
	code, status := gate.ToS3Error(err)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(s3Error{Code: code, Message: err.Error()})
}

func (h *Handler) observe(method string, err error, start time.Time) {
	if h.Metrics == nil {
		return
	}
	code, _ := gate.ToS3Error(err)
	if code == "" {
		code = "OK"
	}
	h.Metrics.RequestsTotal.WithLabelValues(method, code).Inc()
	h.Metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if code == "AccessDenied" {
		h.Metrics.AccessDenied.WithLabelValues("http").Inc()
	}
}

// parseRangeHeader parses a single-range "bytes=a-b" header into an
// inclusive backend.ByteRange; multi-range requests aren't supported.
func parseRangeHeader(hdr string) (backend.ByteRange, bool) {
	hdr = strings.TrimPrefix(hdr, "bytes=")
	parts := strings.SplitN(hdr, "-", 2)
	if len(parts) != 2 {
		return backend.ByteRange{}, false
	}
	start, err1 := strconv.ParseInt(parts[0], 10, 64)
	end, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return backend.ByteRange{}, false
	}
	return backend.ByteRange{Start: start, End: end}, true
}
