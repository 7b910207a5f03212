package model

import "github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"

// Missing records a prefix that did not resolve to an existing resource.
// Index is its position in the originally requested prefix list (0 means
// the bucket itself does not exist); Total is the length of that list.
type Missing struct {
	Index int
	Total int
	Name  string
}

// ResourceStates is the bundle of up to four resolved resources carried
// through a single request, plus whatever prefixes did not resolve.
type ResourceStates struct {
	Project    *Object
	Collection *Object
	Dataset    *Object
	Object     *Object
	Missing    []Missing
}

// AnyMissing reports whether resolution left any prefix unresolved.
func (r *ResourceStates) AnyMissing() bool {
	return len(r.Missing) > 0
}

// DisallowMissing converts any missing slot into NoSuchKey. Read flows
// call this because a missing resource can never legally satisfy a read.
func (r *ResourceStates) DisallowMissing() error {
	if r.AnyMissing() {
		return dataproxyerrs.NoSuchKey.New("resource does not exist: %s", r.Missing[0].Name)
	}
	return nil
}

// Validate enforces the structural invariants from the data model: a
// missing entry's index must fall within [0, Total); a collection,
// dataset or object slot requires the project slot unless the project
// prefix is itself recorded missing; and an object with a parent must
// hang off the innermost resolved slot above it (dataset, else
// collection, else project). A dataset without a collection, or an
// object directly under a project, is legal.
func (r *ResourceStates) Validate() error {
	for _, m := range r.Missing {
		if m.Index < 0 || m.Index >= m.Total {
			return dataproxyerrs.InternalError.New("missing slot index %d out of range [0,%d)", m.Index, m.Total)
		}
	}

	hasCollectionSlot := r.Collection != nil
	hasDatasetSlot := r.Dataset != nil
	hasObjectSlot := r.Object != nil

	if (hasCollectionSlot || hasDatasetSlot || hasObjectSlot) && r.Project == nil {
		// A deeper slot resolved (or was found missing-but-expected) while
		// the project itself never resolved: only legal if the project
		// prefix is itself recorded as missing, which callers already
		// reject via DisallowMissing on read paths. For write paths this
		// is a genuine invariant violation.
		projectMissing := false
		for _, m := range r.Missing {
			if m.Index == 0 {
				projectMissing = true
			}
		}
		if !projectMissing {
			return dataproxyerrs.InternalError.New("resource chain present without a project")
		}
	}

	if hasDatasetSlot && !hasCollectionSlot {
		// Datasets may hang directly off a project in this tree, so this
		// is legal; nothing further to check here beyond parent-chain
		// consistency, enforced below.
	}

	if hasObjectSlot && r.Object.HasParent {
		parent := r.Object.ParentID
		switch {
		case hasDatasetSlot:
			if r.Dataset.ID != parent {
				return dataproxyerrs.InternalError.New("object's parent chain does not match resolved dataset")
			}
		case hasCollectionSlot:
			if r.Collection.ID != parent {
				return dataproxyerrs.InternalError.New("object's parent chain does not match resolved collection")
			}
		case r.Project != nil:
			if r.Project.ID != parent {
				return dataproxyerrs.InternalError.New("object's parent chain does not match resolved project")
			}
		}
	}

	return nil
}

// RequireProject is a total accessor: its absence is a caller invariant
// violation, not a user-facing miss.
func (r *ResourceStates) RequireProject() (*Object, error) {
	if r.Project == nil {
		return nil, dataproxyerrs.InternalError.New("project slot required but unset")
	}
	return r.Project, nil
}

// RequireObject is a total accessor for the innermost resolved object.
// Its absence is a user-facing NoSuchKey.
func (r *ResourceStates) RequireObject() (*Object, error) {
	if r.Object == nil {
		return nil, dataproxyerrs.NoSuchKey.New("object not found")
	}
	return r.Object, nil
}

// Chain returns the resolved resources from outermost to innermost,
// skipping unset slots. Used by permission checks that walk ancestors.
func (r *ResourceStates) Chain() []*Object {
	var chain []*Object
	for _, o := range []*Object{r.Project, r.Collection, r.Dataset, r.Object} {
		if o != nil {
			chain = append(chain, o)
		}
	}
	return chain
}

// CheckPermissions reports whether the key holds at least `required` on
// any ancestor in the resolved chain.
func (r *ResourceStates) CheckPermissions(perms *AccessKeyPermissions, required DbPermissionLevel) bool {
	for _, res := range r.Chain() {
		if perms.Allows(res.ID, required) {
			return true
		}
	}
	return false
}
