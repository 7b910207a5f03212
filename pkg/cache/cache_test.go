package cache_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

func TestUpsertVisibleToReaders(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))

	id := model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	obj := &model.Object{ID: id, ObjectType: model.ObjectTypeProject, Name: "proj"}
	loc := &model.Location{Bucket: "b", Path: "p"}

	c.UpsertObject(obj, loc)

	got, ok := c.GetFullResourceByPath("proj")
	require.False(t, ok) // path wasn't indexed yet
	require.Nil(t, got)

	c.IndexPath("proj", obj)
	got, ok = c.GetFullResourceByPath("proj")
	require.True(t, ok)
	require.Equal(t, id, got.ID)

	gotLoc, ok := c.GetLocation(id)
	require.True(t, ok)
	require.Equal(t, "b", gotLoc.Bucket)
}

func TestKeyPermsAndPubKeyRoundTrip(t *testing.T) {
	c := cache.New(zaptest.NewLogger(t))

	c.UpsertPubKey("serial-1", []byte("pubkey-bytes"))
	serial, key, ok := c.GetPubKey("serial-1")
	require.True(t, ok)
	require.Equal(t, "serial-1", serial)
	require.Equal(t, []byte("pubkey-bytes"), key)

	_, _, ok = c.GetPubKey("missing")
	require.False(t, ok)

	perms := &model.AccessKeyPermissions{AccessKey: "AK1", UserID: "U1"}
	c.UpsertKeyPerms(perms)
	got, ok := c.GetKeyPerms("AK1")
	require.True(t, ok)
	require.Equal(t, "U1", got.UserID)
}
