// Package gate implements the Access Gate (C5): the top-level
// dispatcher that turns an S3 request into a typed resource graph with
// a permission and rule-engine verdict.
package gate

import (
	"net/http"

	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/resources"
	"github.com/storj-thirdparty/dataproxy/pkg/rules"
	"github.com/storj-thirdparty/dataproxy/pkg/s3request"
)

// specialBuckets are read-only, reserved first-path-segments that
// delegate to dedicated handlers instead of the ordinary resource
// tree. Both handlers are stubbed per spec §9 — out of scope for the
// hard core, but the gate must still reject mutating methods against
// them early.
var specialBuckets = map[string]bool{
	"objects": true,
	"bundles": true,
}

// Credentials is the caller identity attached to a request, if any.
type Credentials struct {
	AccessKey string
	UserID    string // resolved by the caller from a verified bearer token
	TokenID   string
}

// CheckAccessResult is the sole contract between the gate and the S3
// request handlers.
type CheckAccessResult struct {
	ResourceStates *model.ResourceStates
	UserID         string
	TokenID        string
	Location       *model.Location
	CORSHeaders    map[string]string
}

// Gate is the top-level request dispatcher.
type Gate struct {
	cache       cache.Cache
	resolver    *resources.Resolver
	rootRules   *rules.Set
	objectRules *rules.Set
	selfID      model.ID
}

// New builds a Gate. rootRules and objectRules may be nil, in which
// case every request is allowed by the rule engine (Set.Evaluate's
// default-allow behavior).
func New(c cache.Cache, selfID model.ID, rootRules, objectRules *rules.Set) *Gate {
	if rootRules == nil {
		rootRules = &rules.Set{Scope: rules.ScopeRoot}
	}
	if objectRules == nil {
		objectRules = &rules.Set{Scope: rules.ScopeObject}
	}
	return &Gate{
		cache:       c,
		resolver:    resources.New(c),
		rootRules:   rootRules,
		objectRules: objectRules,
		selfID:      selfID,
	}
}

// CheckAccess is the single entry point every S3 handler calls before
// touching the backend.
func (g *Gate) CheckAccess(req *s3request.Request, creds *Credentials) (*CheckAccessResult, error) {
	switch {
	case req.IsRoot():
		return g.checkRoot(req, creds)
	case req.IsBucket():
		return g.checkBucket(req, creds)
	default:
		return g.checkObject(req, creds)
	}
}

func (g *Gate) checkRoot(req *s3request.Request, creds *Credentials) (*CheckAccessResult, error) {
	if creds == nil || creds.AccessKey == "" {
		return nil, dataproxyerrs.AccessDenied.New("root request requires credentials")
	}
	perms, ok := g.cache.GetKeyPerms(creds.AccessKey)
	if !ok {
		return nil, dataproxyerrs.AccessDenied.New("unknown access key")
	}

	ctx, err := rules.NewBuilder(rules.ScopeRoot).
		Method(req.Method).Headers(req.Headers).Attributes(g.userAttributes(perms.UserID)).Build()
	if err != nil {
		return nil, err
	}
	if err := g.rootRules.Evaluate(ctx); err != nil {
		return nil, err
	}

	return &CheckAccessResult{UserID: perms.UserID, TokenID: creds.AccessKey}, nil
}

func (g *Gate) checkBucket(req *s3request.Request, creds *Credentials) (*CheckAccessResult, error) {
	states, err := g.resolver.Resolve(resources.BuildPrefixes(req.Bucket, ""))
	if err != nil {
		return nil, err
	}
	if !model.IsMutating(req.Method) {
		// Reads on an absent bucket fail NoSuchKey; creates (e.g. a
		// CreateBucket PUT) are allowed to see a missing slot through.
		if err := states.DisallowMissing(); err != nil {
			return nil, err
		}
	}

	perms, err := g.requirePermission(creds, states, req.Method)
	if err != nil {
		return nil, err
	}

	var userID string
	if perms != nil {
		userID = perms.UserID
	}
	ctx, err := rules.NewBuilder(rules.ScopeObject).
		Method(req.Method).Headers(req.Headers).Permissions(perms).States(states).
		Attributes(g.userAttributes(userID)).Build()
	if err != nil {
		return nil, err
	}
	if err := g.objectRules.Evaluate(ctx); err != nil {
		return nil, err
	}

	result := &CheckAccessResult{ResourceStates: states}
	if perms != nil {
		result.UserID = perms.UserID
		result.TokenID = creds.AccessKey
	}
	if states.Project != nil {
		result.CORSHeaders = states.Project.Headers
	}
	return result, nil
}

func (g *Gate) checkObject(req *s3request.Request, creds *Credentials) (*CheckAccessResult, error) {
	if specialBuckets[req.Bucket] {
		if model.IsMutating(req.Method) {
			return nil, dataproxyerrs.MethodNotAllowed.New("method %s not allowed on %s/", req.Method, req.Bucket)
		}
		return nil, specialBucketHandler(req.Bucket)
	}

	states, err := g.resolver.Resolve(resources.BuildPrefixes(req.Bucket, req.Key))
	if err != nil {
		return nil, err
	}

	if !model.IsMutating(req.Method) {
		if err := states.DisallowMissing(); err != nil {
			return nil, err
		}
	}

	if err := g.resolver.FailPartialSync(states, g.selfID); err != nil {
		return nil, err
	}

	var perms *model.AccessKeyPermissions
	if states.Object.IsPublic() {
		// Permission check skipped for public objects; rules still run.
	} else {
		perms, err = g.requirePermission(creds, states, req.Method)
		if err != nil {
			return nil, err
		}
	}

	var userID string
	if perms != nil {
		userID = perms.UserID
	}
	ctx, err := rules.NewBuilder(rules.ScopeObject).
		Method(req.Method).Headers(req.Headers).Permissions(perms).States(states).
		Attributes(g.userAttributes(userID)).Build()
	if err != nil {
		return nil, err
	}
	if err := g.objectRules.Evaluate(ctx); err != nil {
		return nil, err
	}

	result := &CheckAccessResult{ResourceStates: states}
	if perms != nil {
		result.UserID = perms.UserID
		result.TokenID = creds.AccessKey
	}
	if states.Object != nil {
		if loc, ok := g.cache.GetLocation(states.Object.ID); ok {
			result.Location = loc
		}
	}
	return result, nil
}

// userAttributes looks up a user's cached attribute bag for the rule
// engine's attribute dimension (spec §4.3: Root = attributes + method
// + headers). A userID that resolves to nothing (anonymous/public
// access, or a cache miss) contributes no attributes rather than
// failing the request — rules that key off a specific attribute
// simply never match for it.
func (g *Gate) userAttributes(userID string) map[string]string {
	if userID == "" {
		return nil
	}
	attrs, _ := g.cache.GetUserAttributes(userID)
	return attrs
}

// requirePermission resolves the caller's permission set and checks it
// against the required level for method, walking the resolved
// resource chain.
func (g *Gate) requirePermission(creds *Credentials, states *model.ResourceStates, method string) (*model.AccessKeyPermissions, error) {
	if creds == nil || creds.AccessKey == "" {
		return nil, dataproxyerrs.AccessDenied.New("request requires credentials")
	}
	perms, ok := g.cache.GetKeyPerms(creds.AccessKey)
	if !ok {
		return nil, dataproxyerrs.AccessDenied.New("unknown access key")
	}
	required := model.RequiredPermission(method)
	if !states.CheckPermissions(perms, required) {
		return nil, dataproxyerrs.AccessDenied.New("insufficient permission: need >= %s", required)
	}
	return perms, nil
}

// specialBucketHandler is the out-of-scope delegate for the reserved
// "objects"/"bundles" read surfaces. Neither is implemented by this
// core; spec §9 treats them as a todo!() in the reference
// implementation, carried forward here as an explicit InternalError
// ("not implemented") rather than a silent 200.
func specialBucketHandler(bucket string) error {
	return dataproxyerrs.InternalError.New("special bucket handler for %q is not implemented", bucket)
}

// ToS3Error maps the proxy's internal error classes onto the standard
// S3 error codes the HTTP boundary must return.
func ToS3Error(err error) (code string, status int) {
	switch {
	case err == nil:
		return "", http.StatusOK
	case dataproxyerrs.AccessDenied.Has(err):
		return "AccessDenied", http.StatusForbidden
	case dataproxyerrs.NoSuchKey.Has(err):
		return "NoSuchKey", http.StatusNotFound
	case dataproxyerrs.MethodNotAllowed.Has(err):
		return "MethodNotAllowed", http.StatusMethodNotAllowed
	case dataproxyerrs.ServiceUnavailable.Has(err):
		return "ServiceUnavailable", http.StatusServiceUnavailable
	case dataproxyerrs.AuthMalformed.Has(err), dataproxyerrs.AuthRejected.Has(err):
		return "AccessDenied", http.StatusForbidden
	case dataproxyerrs.InternalError.Has(err):
		return "InternalError", http.StatusInternalServerError
	default:
		return "InternalError", http.StatusInternalServerError
	}
}
