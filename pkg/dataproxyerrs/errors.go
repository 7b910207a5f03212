// Package dataproxyerrs declares the proxy's error taxonomy as a set of
// zeebo/errs classes, mirroring the teacher's own convention of
// per-package error classes rather than sentinel values or custom
// exported types.
package dataproxyerrs

import "github.com/zeebo/errs"

var (
	// AuthMalformed covers a bearer header that isn't "Bearer <jwt>",
	// an unparsable token, or (per the resolved Open Question) an
	// unknown intent action byte.
	AuthMalformed = errs.Class("auth malformed")

	// AuthRejected covers a structurally valid token that fails
	// verification: unknown kid, signature mismatch, wrong audience,
	// expiry, or an intent whose target isn't this proxy.
	AuthRejected = errs.Class("auth rejected")

	// AccessDenied covers a rule-engine or permission-check denial.
	AccessDenied = errs.Class("access denied")

	// NoSuchKey covers a resource-resolution miss on a read path, or an
	// unexpected object_type encountered during resolution.
	NoSuchKey = errs.Class("no such key")

	// MethodNotAllowed covers a mutating method against a read-only
	// special bucket.
	MethodNotAllowed = errs.Class("method not allowed")

	// InternalError covers an invariant violation: a caller asked for a
	// resource slot that resolution guarantees should already be set.
	InternalError = errs.Class("internal error")

	// ServiceUnavailable covers the partial-sync gate: the object's
	// bytes live on a different endpoint and replication hasn't
	// finished.
	ServiceUnavailable = errs.Class("service unavailable")

	// ProtocolError covers a malformed or out-of-sequence replication
	// wire frame.
	ProtocolError = errs.Class("protocol error")

	// ReplicationIncomplete covers a sync-ledger shortfall at
	// finalization: fewer chunks arrived than ObjectInfo advertised.
	ReplicationIncomplete = errs.Class("replication incomplete")

	// RetryExhausted covers a chunk that failed validation (ordering or
	// checksum) more than the retry budget allows.
	RetryExhausted = errs.Class("retry exhausted")

	// BackendWriteFailed covers any transformer or sink failure in the
	// backend writer pipeline.
	BackendWriteFailed = errs.Class("backend write failed")

	// MalformedRuleContext covers a rule engine invocation missing a
	// field its scope requires.
	MalformedRuleContext = errs.Class("malformed rule context")
)
