// Package s3request parses an inbound HTTP request into the typed form
// the access gate consumes, grounded on the path-splitting convention
// common to S3-proxy front-ends in the pack: bucket is the first path
// segment, key is everything after it.
package s3request

import (
	"net/http"
	"strings"
)

// Request is the parsed, gate-facing view of an S3 HTTP request.
type Request struct {
	Method  string
	Bucket  string
	Key     string
	Query   map[string]string
	Headers http.Header
}

// Parse extracts bucket/key/query from r. An empty path is the Root
// request class; a path with no "/" after the bucket is the Bucket
// class; anything deeper is the Object class.
func Parse(r *http.Request) *Request {
	path := strings.TrimPrefix(r.URL.Path, "/")

	req := &Request{
		Method:  r.Method,
		Query:   map[string]string{},
		Headers: r.Header,
	}

	if path != "" {
		parts := strings.SplitN(path, "/", 2)
		req.Bucket = parts[0]
		if len(parts) > 1 {
			req.Key = parts[1]
		}
	}

	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			req.Query[k] = v[0]
		}
	}

	return req
}

// IsRoot reports whether the request addresses "/".
func (r *Request) IsRoot() bool { return r.Bucket == "" }

// IsBucket reports whether the request addresses "/bucket" with no key.
func (r *Request) IsBucket() bool { return r.Bucket != "" && r.Key == "" }
