package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// buildHierarchy creates project -> folder -> object via belongs_to edges
// and returns their indices.
func buildHierarchy(t *testing.T, rs *recordstore.Store, g *Store) (project, folder, object types.NodeIdx) {
	t.Helper()
	p := newTestNode(types.VariantProject, "root-project")
	f := newTestNode(types.VariantFolder, "sub-folder")
	o := newTestNode(types.VariantObject, "leaf-object")

	err := rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		project, err = g.CreateNode(w, p)
		if err != nil {
			return err
		}
		folder, err = g.CreateNode(w, f)
		if err != nil {
			return err
		}
		object, err = g.CreateNode(w, o)
		if err != nil {
			return err
		}
		if err := g.CreateRelation(w, folder, project, types.RelBelongsTo); err != nil {
			return err
		}
		return g.CreateRelation(w, object, folder, types.RelBelongsTo)
	})
	require.NoError(t, err)
	return project, folder, object
}

func TestUpstreamAncestors(t *testing.T) {
	rs, g := openTestGraph(t)
	project, folder, object := buildHierarchy(t, rs, g)

	err := rs.View(func(r *recordstore.ReadTxn) error {
		ancestors, err := g.UpstreamAncestors(r, object)
		require.NoError(t, err)
		assert.ElementsMatch(t, []types.NodeIdx{folder, project}, ancestors)

		rootAncestors, err := g.UpstreamAncestors(r, project)
		require.NoError(t, err)
		assert.Empty(t, rootAncestors)
		return nil
	})
	require.NoError(t, err)
}

func TestSubresourceEnumeration(t *testing.T) {
	rs, g := openTestGraph(t)
	project, folder, object := buildHierarchy(t, rs, g)

	err := rs.View(func(r *recordstore.ReadTxn) error {
		descendants, err := g.SubresourceEnumeration(r, project)
		require.NoError(t, err)
		assert.ElementsMatch(t, []types.NodeIdx{folder, object}, descendants)

		leafDescendants, err := g.SubresourceEnumeration(r, object)
		require.NoError(t, err)
		assert.Empty(t, leafDescendants)
		return nil
	})
	require.NoError(t, err)
}

func TestPermissionWalkDirectGrant(t *testing.T) {
	rs, g := openTestGraph(t)
	project, _, object := buildHierarchy(t, rs, g)
	user := newTestNode(types.VariantUser, "alice")

	var userIdx types.NodeIdx
	err := rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		userIdx, err = g.CreateNode(w, user)
		if err != nil {
			return err
		}
		return g.CreateRelation(w, userIdx, project, types.RelPermissionWrite)
	})
	require.NoError(t, err)

	err = rs.View(func(r *recordstore.ReadTxn) error {
		lvl, err := g.PermissionWalk(r, userIdx, object)
		require.NoError(t, err)
		assert.Equal(t, types.PermissionLevel(types.RelPermissionWrite), lvl)
		return nil
	})
	require.NoError(t, err)
}

func TestPermissionWalkViaGroupMembership(t *testing.T) {
	rs, g := openTestGraph(t)
	project, _, object := buildHierarchy(t, rs, g)
	user := newTestNode(types.VariantUser, "bob")
	group := newTestNode(types.VariantGroup, "admins")

	var userIdx, groupIdx types.NodeIdx
	err := rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		userIdx, err = g.CreateNode(w, user)
		if err != nil {
			return err
		}
		groupIdx, err = g.CreateNode(w, group)
		if err != nil {
			return err
		}
		if err := g.CreateRelation(w, userIdx, groupIdx, types.RelOwnedBy); err != nil {
			return err
		}
		return g.CreateRelation(w, groupIdx, project, types.RelPermissionAdmin)
	})
	require.NoError(t, err)

	err = rs.View(func(r *recordstore.ReadTxn) error {
		lvl, err := g.PermissionWalk(r, userIdx, object)
		require.NoError(t, err)
		assert.Equal(t, types.PermissionLevel(types.RelPermissionAdmin), lvl)
		return nil
	})
	require.NoError(t, err)
}

func TestPermissionWalkNoPath(t *testing.T) {
	rs, g := openTestGraph(t)
	_, _, object := buildHierarchy(t, rs, g)
	user := newTestNode(types.VariantUser, "stranger")

	var userIdx types.NodeIdx
	err := rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		userIdx, err = g.CreateNode(w, user)
		return err
	})
	require.NoError(t, err)

	err = rs.View(func(r *recordstore.ReadTxn) error {
		lvl, err := g.PermissionWalk(r, userIdx, object)
		require.NoError(t, err)
		assert.Equal(t, -1, lvl)
		return nil
	})
	require.NoError(t, err)
}
