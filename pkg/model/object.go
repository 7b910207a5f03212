package model

// ObjectType discriminates the position of an Object in the resource
// tree. "Endpoint" exists in the metadata server's type system but is
// never a legal resolution target for an S3 path.
type ObjectType int

const (
	ObjectTypeUnknown ObjectType = iota
	ObjectTypeProject
	ObjectTypeCollection
	ObjectTypeDataset
	ObjectTypeObject
	ObjectTypeEndpoint
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeProject:
		return "Project"
	case ObjectTypeCollection:
		return "Collection"
	case ObjectTypeDataset:
		return "Dataset"
	case ObjectTypeObject:
		return "Object"
	case ObjectTypeEndpoint:
		return "Endpoint"
	default:
		return "Unknown"
	}
}

// DataClass controls whether an Object's bytes may be read without
// credentials.
type DataClass int

const (
	DataClassPrivate DataClass = iota
	DataClassPublic
	DataClassWorkspace
)

// Object is a node in the Project -> Collection -> Dataset -> Object
// metadata tree. It is immutable for a given version; callers that want
// to change one go through Cache.UpsertObject with a new value.
type Object struct {
	ID         ID
	ObjectType ObjectType
	DataClass  DataClass
	Name       string
	ParentID   ID
	HasParent  bool
	Children   []ID
	Headers    map[string]string
}

// IsPublic reports whether the object may be read without credentials.
func (o *Object) IsPublic() bool {
	return o != nil && o.DataClass == DataClassPublic
}
