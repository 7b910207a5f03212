// Package cache implements the Resource Cache (C1): an in-memory index
// of projects/collections/datasets/objects, access-keys, public keys
// and on-disk locations, keyed by ULID and by path.
//
// All reads are non-blocking snapshots; writes are serialized per key.
// There is no TTL — invalidation is push-driven by the metadata
// server's notification stream, which is out of scope here. The only
// requirement this cache must satisfy is that an Upsert becomes
// visible to every subsequent reader once it returns, which a plain
// sync.RWMutex-guarded map gives us for free.
package cache

import (
	"sync"

	"go.uber.org/zap"

	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// Cache is the contract every other component consults for metadata.
type Cache interface {
	GetPubKey(serial string) (kid string, key []byte, ok bool)
	GetKeyPerms(accessKey string) (*model.AccessKeyPermissions, bool)
	GetUserAttributes(userID string) (map[string]string, bool)
	GetFullResourceByPath(path string) (*model.Object, bool)
	GetLocation(objectID model.ID) (*model.Location, bool)
	UpsertObject(obj *model.Object, loc *model.Location)
	UpsertLocation(objectID model.ID, loc *model.Location)
	UpsertPubKey(serial string, key []byte)
	UpsertKeyPerms(perms *model.AccessKeyPermissions)
}

// Memory is the in-process implementation of Cache.
type Memory struct {
	log *zap.Logger

	mu        sync.RWMutex
	pubkeys   map[string][]byte
	keyPerms  map[string]*model.AccessKeyPermissions
	userAttrs map[string]map[string]string
	byPath    map[string]*model.Object
	byID      map[model.ID]*model.Object
	locations map[model.ID]*model.Location
}

// New returns an empty in-memory cache.
func New(log *zap.Logger) *Memory {
	return &Memory{
		log:       log,
		pubkeys:   make(map[string][]byte),
		keyPerms:  make(map[string]*model.AccessKeyPermissions),
		userAttrs: make(map[string]map[string]string),
		byPath:    make(map[string]*model.Object),
		byID:      make(map[model.ID]*model.Object),
		locations: make(map[model.ID]*model.Location),
	}
}

// GetPubKey returns the decoding key cached for a JWT `kid`.
func (c *Memory) GetPubKey(serial string) (string, []byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.pubkeys[serial]
	return serial, key, ok
}

// UpsertPubKey caches a proxy's EdDSA public key under its serial.
func (c *Memory) UpsertPubKey(serial string, key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pubkeys[serial] = key
}

// GetKeyPerms returns the cached permission set for an S3 access key.
func (c *Memory) GetKeyPerms(accessKey string) (*model.AccessKeyPermissions, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.keyPerms[accessKey]
	return p, ok
}

// UpsertKeyPerms replaces (or inserts) the permission set for an
// access key.
func (c *Memory) UpsertKeyPerms(perms *model.AccessKeyPermissions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyPerms[perms.AccessKey] = perms
}

// GetUserAttributes returns the cached attribute bag for a user.
func (c *Memory) GetUserAttributes(userID string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.userAttrs[userID]
	return a, ok
}

// GetFullResourceByPath resolves a "/"-joined resource path to the
// Object the metadata server last reported at that path.
func (c *Memory) GetFullResourceByPath(path string) (*model.Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.byPath[path]
	return o, ok
}

// GetLocation returns the backend placement record for an object, if
// this proxy has one.
func (c *Memory) GetLocation(objectID model.ID) (*model.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.locations[objectID]
	return l, ok
}

// UpsertObject atomically records obj (and, if non-nil, loc) in the
// cache, indexed by id only. Path lookups see obj once IndexPath has
// been called for it; callers compute path themselves (the cache has
// no notion of path construction beyond storing whatever key it's
// given).
func (c *Memory) UpsertObject(obj *model.Object, loc *model.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[obj.ID] = obj
	if loc != nil {
		c.locations[obj.ID] = loc
	}
}

// UpsertLocation records loc as an object's backend placement without
// touching its tree metadata — the replication scheduler's completion
// step (spec §4.6: "upsert (object, Some(location))" once a pull
// succeeds) only has a Location to report, and must not clobber an
// Object entry some other path already cached.
func (c *Memory) UpsertLocation(objectID model.ID, loc *model.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations[objectID] = loc
}

// IndexPath associates a resource path with an already-upserted
// object. Split from UpsertObject because path construction depends
// on the full ancestor chain, which callers assemble outside the
// cache.
func (c *Memory) IndexPath(path string, obj *model.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byPath[path] = obj
}
