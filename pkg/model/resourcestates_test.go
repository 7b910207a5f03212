package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

func TestResourceStatesValidateRequiresProject(t *testing.T) {
	dataset := &model.Object{ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FAV"), ObjectType: model.ObjectTypeDataset}
	r := &model.ResourceStates{Dataset: dataset}
	require.Error(t, r.Validate())
}

func TestResourceStatesValidateAllowsMissingProject(t *testing.T) {
	r := &model.ResourceStates{
		Missing: []model.Missing{{Index: 0, Total: 1, Name: "unknown"}},
	}
	require.NoError(t, r.Validate())
}

func TestResourceStatesValidateChecksParentChain(t *testing.T) {
	project := &model.Object{ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FAV")}
	otherID := model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FAW")
	obj := &model.Object{ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FAX"), HasParent: true, ParentID: otherID}

	r := &model.ResourceStates{Project: project, Object: obj}
	require.Error(t, r.Validate())

	obj.ParentID = project.ID
	require.NoError(t, r.Validate())
}

func TestResourceStatesMissingIndexBounds(t *testing.T) {
	r := &model.ResourceStates{Missing: []model.Missing{{Index: 2, Total: 2}}}
	require.Error(t, r.Validate())
}

func TestDisallowMissing(t *testing.T) {
	r := &model.ResourceStates{Missing: []model.Missing{{Index: 0, Total: 1, Name: "b"}}}
	require.Error(t, r.DisallowMissing())

	r2 := &model.ResourceStates{}
	require.NoError(t, r2.DisallowMissing())
}

func TestCheckPermissionsWalksAncestors(t *testing.T) {
	project := &model.Object{ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FAV")}
	collection := &model.Object{ID: model.MustParseID("01ARZ3NDEKTSV4RRFFQ69G5FAW"), HasParent: true, ParentID: project.ID}
	r := &model.ResourceStates{Project: project, Collection: collection}

	perms := &model.AccessKeyPermissions{
		Permissions: map[model.ID]model.DbPermissionLevel{
			project.ID: model.PermissionRead,
		},
	}
	require.True(t, r.CheckPermissions(perms, model.PermissionRead))
	require.False(t, r.CheckPermissions(perms, model.PermissionWrite))
}
