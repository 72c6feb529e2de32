package requestlayer

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/authz"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txcontroller"
	"github.com/aruna-project/aruna-server/pkg/types"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

// fakeController applies a WriteRequest synchronously against rs/gs/ui,
// mirroring pkg/hooks's own test harness: RL only depends on
// Submit(WriteRequest) ([]byte, error), not on how commits reach consensus.
type fakeController struct {
	rs *recordstore.Store
	gs *graph.Store
	ui *universe.Index
}

func (f *fakeController) Submit(req txcontroller.WriteRequest) ([]byte, error) {
	var reply []byte
	err := f.rs.Update(func(w *recordstore.WriteTxn) error {
		r, affected, variant, err := req.Execute(ulid.Make(), w, f.gs, f.ui)
		if err != nil {
			return err
		}
		reply = r
		if len(affected) > 0 {
			return f.gs.RegisterEvent(w, ulid.Make(), affected, variant)
		}
		return nil
	})
	return reply, err
}

func openTestLayer(t *testing.T) (*recordstore.Store, *graph.Store, *universe.Index, *Layer) {
	t.Helper()
	keyspaces := append(graph.Keyspaces(), universe.Keyspaces()...)
	rs, err := recordstore.Open(t.TempDir(), keyspaces)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	gs := graph.New(rs)
	ui := universe.New(rs)
	az := authz.New(gs, ui)
	fc := &fakeController{rs: rs, gs: gs, ui: ui}

	return rs, gs, ui, New(rs, gs, ui, az, nil, fc)
}

func createUser(t *testing.T, rs *recordstore.Store, gs *graph.Store, ui *universe.Index, name string) types.ID {
	t.Helper()
	user := &types.Node{ID: ulid.Make(), Variant: types.VariantUser, Name: name}
	require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
		_, err := gs.CreateNode(w, user)
		if err != nil {
			return err
		}
		return ui.Project(w, user)
	}))
	return user.ID
}

// TestCreateRealmMintsAdminGroupAndGrantsOwner grounds spec.md §8 scenario
// S1: the owner ends up with admin permission on the auto-created admin
// group, which in turn administrates the new realm.
func TestCreateRealmMintsAdminGroupAndGrantsOwner(t *testing.T) {
	rs, gs, ui, layer := openTestLayer(t)
	owner := createUser(t, rs, gs, ui, "alice")

	reply, err := layer.Submit(&owner, authz.UserOnly(), &CreateRealmRequest{Owner: owner, Tag: "eu", Name: "Europe"})
	require.NoError(t, err)
	require.NotEmpty(t, reply)
	realmID, err := ulid.Parse(string(reply))
	require.NoError(t, err)

	require.NoError(t, rs.View(func(r *recordstore.ReadTxn) error {
		realmIdx, ok := gs.GetIdxFromULID(r, realmID)
		require.True(t, ok)
		realm, err := gs.GetNode(r, realmIdx)
		require.NoError(t, err)
		assert.Equal(t, "eu", realm.Tag)
		return nil
	}))

	err = layer.Read(&owner, authz.Permission(realmID, types.PermissionLevel(types.RelPermissionAdmin)), func(r *recordstore.ReadTxn) error {
		return nil
	})
	assert.NoError(t, err, "owner should hold admin permission on the realm via the auto-created group")
}

// TestCreateRealmDuplicateTagConflicts grounds spec.md §8 scenario S1's tag
// uniqueness requirement.
func TestCreateRealmDuplicateTagConflicts(t *testing.T) {
	rs, gs, ui, layer := openTestLayer(t)
	owner := createUser(t, rs, gs, ui, "alice")

	_, err := layer.Submit(&owner, authz.UserOnly(), &CreateRealmRequest{Owner: owner, Tag: "eu", Name: "Europe"})
	require.NoError(t, err)

	_, err = layer.Submit(&owner, authz.UserOnly(), &CreateRealmRequest{Owner: owner, Tag: "eu", Name: "Europe Again"})
	require.Error(t, err)
	assert.True(t, arerr.IsKind(err, arerr.Conflict))
}

// TestAddGroupRequiresRealmAdminPermission grounds spec.md §8 scenario S2: a
// caller without admin on the realm is forbidden from attaching a group.
func TestAddGroupRequiresRealmAdminPermission(t *testing.T) {
	rs, gs, ui, layer := openTestLayer(t)
	owner := createUser(t, rs, gs, ui, "alice")
	outsider := createUser(t, rs, gs, ui, "mallory")

	reply, err := layer.Submit(&owner, authz.UserOnly(), &CreateRealmRequest{Owner: owner, Tag: "eu", Name: "Europe"})
	require.NoError(t, err)
	realmID, err := ulid.Parse(string(reply))
	require.NoError(t, err)

	group := &types.Node{ID: ulid.Make(), Variant: types.VariantGroup, Name: "engineers"}
	require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
		_, err := gs.CreateNode(w, group)
		if err != nil {
			return err
		}
		return ui.Project(w, group)
	}))

	_, err = layer.Submit(&outsider, authz.Permission(realmID, types.PermissionLevel(types.RelPermissionAdmin)),
		&AddGroupRequest{Realm: realmID, Group: group.ID})
	require.Error(t, err)
	assert.True(t, arerr.IsKind(err, arerr.Forbidden))

	_, err = layer.Submit(&owner, authz.Permission(realmID, types.PermissionLevel(types.RelPermissionAdmin)),
		&AddGroupRequest{Realm: realmID, Group: group.ID})
	require.NoError(t, err)
}

// TestGetGroupsFromRealmOrdersByNodeIdxAscending grounds spec.md §8
// scenario S3.
func TestGetGroupsFromRealmOrdersByNodeIdxAscending(t *testing.T) {
	rs, gs, ui, layer := openTestLayer(t)
	owner := createUser(t, rs, gs, ui, "alice")

	reply, err := layer.Submit(&owner, authz.UserOnly(), &CreateRealmRequest{Owner: owner, Tag: "eu", Name: "Europe"})
	require.NoError(t, err)
	realmID, err := ulid.Parse(string(reply))
	require.NoError(t, err)

	var groupIDs []types.ID
	for _, name := range []string{"g1", "g2", "g3"} {
		group := &types.Node{ID: ulid.Make(), Variant: types.VariantGroup, Name: name}
		require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
			_, err := gs.CreateNode(w, group)
			if err != nil {
				return err
			}
			return ui.Project(w, group)
		}))
		_, err := layer.Submit(&owner, authz.Permission(realmID, types.PermissionLevel(types.RelPermissionAdmin)),
			&AddGroupRequest{Realm: realmID, Group: group.ID})
		require.NoError(t, err)
		groupIDs = append(groupIDs, group.ID)
	}

	var got []*types.Node
	require.NoError(t, rs.View(func(r *recordstore.ReadTxn) error {
		var err error
		got, err = layer.GetGroupsFromRealm(r, realmID)
		return err
	}))
	require.Len(t, got, 3)
	for i, want := range groupIDs {
		assert.Equal(t, want, got[i].ID)
	}
	// the auto-created admin group is linked by group_administrates_realm,
	// not group_part_of_realm, and must not appear here.
	for _, n := range got {
		assert.NotContains(t, n.Name, "-admin")
	}
}

// TestObjectLifecycleInitializingToAvailable grounds spec.md §8 scenario S4.
func TestObjectLifecycleInitializingToAvailable(t *testing.T) {
	rs, gs, ui, layer := openTestLayer(t)
	owner := createUser(t, rs, gs, ui, "alice")

	reply, err := layer.Submit(&owner, authz.UserOnly(), &CreateRealmRequest{Owner: owner, Tag: "eu", Name: "Europe"})
	require.NoError(t, err)
	realmID, err := ulid.Parse(string(reply))
	require.NoError(t, err)

	adminCtx := authz.Permission(realmID, types.PermissionLevel(types.RelPermissionAdmin))
	projReply, err := layer.Submit(&owner, adminCtx, &CreateProjectRequest{Realm: realmID, Name: "demo"})
	require.NoError(t, err)
	projectID, err := ulid.Parse(string(projReply))
	require.NoError(t, err)

	objReply, err := layer.Submit(&owner, adminCtx, &CreateObjectRequest{Parent: projectID, Name: "data.csv", Title: "Data"})
	require.NoError(t, err)
	objectID, err := ulid.Parse(string(objReply))
	require.NoError(t, err)

	require.NoError(t, rs.View(func(r *recordstore.ReadTxn) error {
		node, err := layer.GetNode(r, objectID)
		require.NoError(t, err)
		assert.Equal(t, types.ObjectStatusInitializing, node.Status)
		return nil
	}))

	_, err = layer.Submit(&owner, adminCtx, &FinishObjectRequest{Object: objectID, Hashes: map[string]string{"sha256": "abc"}})
	require.NoError(t, err)

	require.NoError(t, rs.View(func(r *recordstore.ReadTxn) error {
		node, err := layer.GetNode(r, objectID)
		require.NoError(t, err)
		assert.Equal(t, types.ObjectStatusAvailable, node.Status)
		assert.Equal(t, "abc", node.Hashes["sha256"])
		return nil
	}))
}

// TestDeleteNodeCascadesToSubresources grounds spec.md §4.8: deleting a
// project transitions every descendant's status to Deleted and rewrites
// their belongs_to edges to the deleted sentinel, without physically
// removing any node.
func TestDeleteNodeCascadesToSubresources(t *testing.T) {
	rs, gs, ui, layer := openTestLayer(t)
	owner := createUser(t, rs, gs, ui, "alice")
	adminAnywhere := authz.UserOnly()

	reply, err := layer.Submit(&owner, authz.UserOnly(), &CreateRealmRequest{Owner: owner, Tag: "eu", Name: "Europe"})
	require.NoError(t, err)
	realmID, err := ulid.Parse(string(reply))
	require.NoError(t, err)
	adminCtx := authz.Permission(realmID, types.PermissionLevel(types.RelPermissionAdmin))

	projReply, err := layer.Submit(&owner, adminCtx, &CreateProjectRequest{Realm: realmID, Name: "demo"})
	require.NoError(t, err)
	projectID, err := ulid.Parse(string(projReply))
	require.NoError(t, err)

	objReply, err := layer.Submit(&owner, adminCtx, &CreateObjectRequest{Parent: projectID, Name: "a.csv"})
	require.NoError(t, err)
	objectID, err := ulid.Parse(string(objReply))
	require.NoError(t, err)

	_, err = layer.Submit(&owner, adminAnywhere, &DeleteNodeRequest{Target: projectID})
	require.NoError(t, err)

	require.NoError(t, rs.View(func(r *recordstore.ReadTxn) error {
		proj, err := layer.GetNode(r, projectID)
		require.NoError(t, err)
		assert.Equal(t, types.ObjectStatusDeleted, proj.Status)

		obj, err := layer.GetNode(r, objectID)
		require.NoError(t, err)
		assert.Equal(t, types.ObjectStatusDeleted, obj.Status)

		objIdx, ok := gs.GetIdxFromULID(r, objectID)
		require.True(t, ok)
		projIdx, ok := gs.GetIdxFromULID(r, projectID)
		require.True(t, ok)

		deleted, err := gs.GetRelations(r, objIdx, []uint32{types.RelDeleted}, graph.DirectionOut)
		require.NoError(t, err)
		require.Len(t, deleted, 1)
		assert.Equal(t, projIdx, deleted[0].Target)

		remaining, err := gs.GetRelations(r, objIdx, []uint32{types.RelBelongsTo}, graph.DirectionOut)
		require.NoError(t, err)
		assert.Empty(t, remaining)
		return nil
	}))
}
