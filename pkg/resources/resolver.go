// Package resources implements the Resource Resolver (C4): it turns an
// S3 path into a sequence of prefixes, resolves each one through the
// cache into a typed resource, and assembles the ResourceStates bundle
// the rest of the request pipeline consumes.
package resources

import (
	"strings"

	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// Prefix is one (path, name) pair to resolve, shortest first:
// "/bucket", "/bucket/x", "/bucket/x/y", "/bucket/x/y/z".
type Prefix struct {
	Path string
	Name string
}

// BuildPrefixes splits an S3 "bucket/key" pair into the 1..4 prefix
// pairs the resolver walks, per spec §6. key may itself contain up to
// three "/"-separated segments for collection/dataset/object chaining.
func BuildPrefixes(bucket, key string) []Prefix {
	segments := []string{bucket}
	if key != "" {
		segments = append(segments, strings.Split(key, "/")...)
	}
	if len(segments) > 4 {
		segments = segments[:4]
	}

	prefixes := make([]Prefix, 0, len(segments))
	for i, name := range segments {
		path := strings.Join(segments[:i+1], "/")
		prefixes = append(prefixes, Prefix{Path: path, Name: name})
	}
	return prefixes
}

// Resolver resolves prefix lists into ResourceStates bundles against
// the cache.
type Resolver struct {
	cache cache.Cache
}

// New builds a Resolver backed by c.
func New(c cache.Cache) *Resolver {
	return &Resolver{cache: c}
}

// Resolve walks prefixes in order, looking each one up by path. A miss
// records a Missing slot (legal only for flows that may subsequently
// create the resource); a hit is dispatched into the matching slot by
// its ObjectType. An unexpected type is a hard NoSuchKey, not a
// missing slot — the path names something real, just not something an
// S3 path may address directly.
func (r *Resolver) Resolve(prefixes []Prefix) (*model.ResourceStates, error) {
	states := &model.ResourceStates{}
	total := len(prefixes)

	for i, p := range prefixes {
		obj, ok := r.cache.GetFullResourceByPath(p.Path)
		if !ok {
			states.Missing = append(states.Missing, model.Missing{Index: i, Total: total, Name: p.Name})
			continue
		}
		switch obj.ObjectType {
		case model.ObjectTypeProject:
			states.Project = obj
		case model.ObjectTypeCollection:
			states.Collection = obj
		case model.ObjectTypeDataset:
			states.Dataset = obj
		case model.ObjectTypeObject:
			states.Object = obj
		default:
			return nil, dataproxyerrs.NoSuchKey.New("unexpected resource type %s at %q", obj.ObjectType, p.Path)
		}
	}

	if err := states.Validate(); err != nil {
		return nil, err
	}
	return states, nil
}

// FailPartialSync implements spec §4.4's replication gate: if the
// resolved object's Location exists but belongs to a different
// endpoint and is flagged partial, the request must fail
// ServiceUnavailable until replication completes.
func (r *Resolver) FailPartialSync(states *model.ResourceStates, selfID model.ID) error {
	if states.Object == nil {
		return nil
	}
	loc, ok := r.cache.GetLocation(states.Object.ID)
	if !ok {
		return nil
	}
	if loc.IsPartialSync && loc.OwningEndpoint != selfID {
		return dataproxyerrs.ServiceUnavailable.New("object %s is still replicating from %s", states.Object.ID, loc.OwningEndpoint)
	}
	return nil
}
