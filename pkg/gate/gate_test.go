package gate_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/gate"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/s3request"
)

func parse(method, path string) *s3request.Request {
	r := httptest.NewRequest(method, path, nil)
	return s3request.Parse(r)
}

// S1: Root GET with valid creds, rules allow.
func TestS1RootGetValidCreds(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))
	c.UpsertKeyPerms(&model.AccessKeyPermissions{AccessKey: "AK1", UserID: "U1"})
	g := gate.New(c, model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FA0"), nil, nil)

	res, err := g.CheckAccess(parse(http.MethodGet, "/"), &gate.Credentials{AccessKey: "AK1"})
	require.NoError(t, err)
	require.Equal(t, "U1", res.UserID)
	require.Nil(t, res.Location)
}

func TestRootRequiresCreds(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))
	g := gate.New(c, model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FA0"), nil, nil)
	_, err := g.CheckAccess(parse(http.MethodGet, "/"), nil)
	require.Error(t, err)
}

// S2: Bucket GET, bucket absent -> NoSuchKey.
func TestS2BucketAbsent(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))
	c.UpsertKeyPerms(&model.AccessKeyPermissions{AccessKey: "AK1", UserID: "U1"})
	g := gate.New(c, model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FA0"), nil, nil)

	_, err := g.CheckAccess(parse(http.MethodGet, "/unknown"), &gate.Credentials{AccessKey: "AK1"})
	require.Error(t, err)
}

// S3: Object GET on Public object without creds succeeds.
func TestS3PublicObjectNoCreds(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))
	project := &model.Object{ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FB0"), ObjectType: model.ObjectTypeProject}
	obj := &model.Object{
		ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FB1"), ObjectType: model.ObjectTypeObject,
		DataClass: model.DataClassPublic, HasParent: true, ParentID: project.ID,
	}
	c.IndexPath("proj", project)
	c.IndexPath("proj/obj.dat", obj)
	c.UpsertObject(obj, &model.Location{Bucket: "backend", Path: "proj/obj.dat"})

	g := gate.New(c, model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FB2"), nil, nil)

	res, err := g.CheckAccess(parse(http.MethodGet, "/proj/obj.dat"), nil)
	require.NoError(t, err)
	require.NotNil(t, res.Location)
	require.Equal(t, "backend", res.Location.Bucket)
}

// S4: Mutating method on `objects` bucket -> MethodNotAllowed.
func TestS4SpecialBucketRejectsMutation(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))
	c.UpsertKeyPerms(&model.AccessKeyPermissions{AccessKey: "AK1", UserID: "U1"})
	g := gate.New(c, model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FA0"), nil, nil)

	_, err := g.CheckAccess(parse(http.MethodPut, "/objects/foo"), &gate.Credentials{AccessKey: "AK1"})
	require.Error(t, err)
	code, status := gate.ToS3Error(err)
	require.Equal(t, "MethodNotAllowed", code)
	require.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestSpecialBucketReadIsStubbed(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))
	g := gate.New(c, model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FA0"), nil, nil)

	_, err := g.CheckAccess(parse(http.MethodGet, "/objects/foo"), nil)
	require.Error(t, err) // stubbed handler, not a MethodNotAllowed
}

func TestPrivateObjectRequiresPermission(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))
	project := &model.Object{ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FC0"), ObjectType: model.ObjectTypeProject}
	obj := &model.Object{
		ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FC1"), ObjectType: model.ObjectTypeObject,
		HasParent: true, ParentID: project.ID,
	}
	c.IndexPath("proj", project)
	c.IndexPath("proj/obj.dat", obj)

	g := gate.New(c, model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FC2"), nil, nil)

	_, err := g.CheckAccess(parse(http.MethodGet, "/proj/obj.dat"), nil)
	require.Error(t, err)

	c.UpsertKeyPerms(&model.AccessKeyPermissions{
		AccessKey: "AK1", UserID: "U1",
		Permissions: map[model.ID]model.DbPermissionLevel{project.ID: model.PermissionRead},
	})
	res, err := g.CheckAccess(parse(http.MethodGet, "/proj/obj.dat"), &gate.Credentials{AccessKey: "AK1"})
	require.NoError(t, err)
	require.Equal(t, "U1", res.UserID)
}
