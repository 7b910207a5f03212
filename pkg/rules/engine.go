// Package rules implements the Rule Engine (C3): declarative allow/deny
// evaluation over request attributes, pure and deterministic — no I/O,
// no time dependence.
package rules

import (
	"net/http"

	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// Scope distinguishes the two contexts a rule set can be evaluated in.
type Scope int

const (
	ScopeRoot Scope = iota
	ScopeObject
)

// Rule is one declarative allow/deny clause. A nil Match always
// matches; Allow is the verdict when it does.
type Rule struct {
	Name  string
	Allow bool
	Match func(ctx *Context) bool
}

// Context bundles everything a rule may inspect. Object-scope rules
// require States (Permissions may be nil, e.g. for an anonymous read of
// a public object); Root-scope rules require neither.
type Context struct {
	Scope       Scope
	Method      string
	Headers     http.Header
	Attributes  map[string]string
	Permissions *model.AccessKeyPermissions
	States      *model.ResourceStates
}

// Builder assembles a Context and fails fast if a required field for
// the target scope wasn't supplied.
type Builder struct {
	ctx Context
}

// NewBuilder starts building a Context for the given scope.
func NewBuilder(scope Scope) *Builder {
	return &Builder{ctx: Context{Scope: scope, Attributes: map[string]string{}}}
}

func (b *Builder) Method(m string) *Builder {
	b.ctx.Method = m
	return b
}

func (b *Builder) Headers(h http.Header) *Builder {
	b.ctx.Headers = h
	return b
}

func (b *Builder) Attribute(k, v string) *Builder {
	b.ctx.Attributes[k] = v
	return b
}

// Attributes merges a whole attribute bag in one call, e.g. the
// caller's cached user attributes.
func (b *Builder) Attributes(attrs map[string]string) *Builder {
	for k, v := range attrs {
		b.ctx.Attributes[k] = v
	}
	return b
}

func (b *Builder) Permissions(p *model.AccessKeyPermissions) *Builder {
	b.ctx.Permissions = p
	return b
}

func (b *Builder) States(s *model.ResourceStates) *Builder {
	b.ctx.States = s
	return b
}

// Build validates and returns the assembled Context.
func (b *Builder) Build() (*Context, error) {
	if b.ctx.Method == "" {
		return nil, dataproxyerrs.MalformedRuleContext.New("method is required")
	}
	if b.ctx.Scope == ScopeObject && b.ctx.States == nil {
		return nil, dataproxyerrs.MalformedRuleContext.New("object-scope rules require resource states")
	}
	return &b.ctx, nil
}

// Set is an ordered list of rules evaluated for a single scope.
type Set struct {
	Scope Scope
	Rules []Rule
}

// Evaluate runs every rule whose Match accepts ctx and returns the
// verdict of the first one that matches, in order. A Set with no
// matching rule allows by default — a verdict is only a denial when a
// rule explicitly says so, matching the spec's "denial is uniformly
// reported upstream" design where absence of rules means no
// additional restriction beyond the permission check.
func (s *Set) Evaluate(ctx *Context) error {
	if ctx.Scope != s.Scope {
		return dataproxyerrs.MalformedRuleContext.New("rule set scope mismatch")
	}
	for _, r := range s.Rules {
		if r.Match == nil || r.Match(ctx) {
			if !r.Allow {
				return dataproxyerrs.AccessDenied.New("denied by rule %q", r.Name)
			}
			return nil
		}
	}
	return nil
}
