package universe

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

func openTestIndex(t *testing.T) (*recordstore.Store, *Index) {
	t.Helper()
	rs, err := recordstore.Open(t.TempDir(), Keyspaces())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, New(rs)
}

func projectTestNode(t *testing.T, rs *recordstore.Store, idx *Index, idxVal types.NodeIdx, variant types.Variant, name, tag string, labels []types.KeyValue) {
	t.Helper()
	n := &types.Node{
		ID:        ulid.Make(),
		Idx:       idxVal,
		Variant:   variant,
		Name:      name,
		Tag:       tag,
		Labels:    labels,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(idxVal) * time.Hour),
	}
	err := rs.Update(func(w *recordstore.WriteTxn) error {
		return idx.Project(w, n)
	})
	require.NoError(t, err)
}

func TestFilteredEquality(t *testing.T) {
	rs, idx := openTestIndex(t)
	projectTestNode(t, rs, idx, 1, types.VariantRealm, "eu", "eu-realm", nil)
	projectTestNode(t, rs, idx, 2, types.VariantRealm, "us", "us-realm", nil)

	err := rs.View(func(r *recordstore.ReadTxn) error {
		matches, err := idx.Filtered(r, Eq(FieldTag, "eu-realm"))
		require.NoError(t, err)
		assert.Equal(t, []types.NodeIdx{1}, matches)
		return nil
	})
	require.NoError(t, err)
}

func TestFilteredVariantHelper(t *testing.T) {
	rs, idx := openTestIndex(t)
	projectTestNode(t, rs, idx, 1, types.VariantRealm, "eu", "eu-realm", nil)
	projectTestNode(t, rs, idx, 2, types.VariantProject, "demo", "", nil)

	err := rs.View(func(r *recordstore.ReadTxn) error {
		matches, err := idx.Filtered(r, FilterVariant(types.VariantRealm))
		require.NoError(t, err)
		assert.Equal(t, []types.NodeIdx{1}, matches)
		return nil
	})
	require.NoError(t, err)
}

func TestFilteredAndAcrossLabelsAndName(t *testing.T) {
	rs, idx := openTestIndex(t)
	projectTestNode(t, rs, idx, 1, types.VariantObject, "report.csv", "", []types.KeyValue{
		{Key: "hook.done", Value: "true", Variant: types.KeyValueVariantLabel},
	})
	projectTestNode(t, rs, idx, 2, types.VariantObject, "report.csv", "", nil)

	err := rs.View(func(r *recordstore.ReadTxn) error {
		matches, err := idx.Filtered(r, And(Eq(FieldName, "report.csv"), Eq(FieldLabelKey, "hook.done")))
		require.NoError(t, err)
		assert.Equal(t, []types.NodeIdx{1}, matches)
		return nil
	})
	require.NoError(t, err)
}

func TestFilteredResultsAscendingNoDuplicates(t *testing.T) {
	rs, idx := openTestIndex(t)
	projectTestNode(t, rs, idx, 3, types.VariantProject, "p3", "", nil)
	projectTestNode(t, rs, idx, 1, types.VariantProject, "p1", "", nil)
	projectTestNode(t, rs, idx, 2, types.VariantProject, "p2", "", nil)

	err := rs.View(func(r *recordstore.ReadTxn) error {
		matches, err := idx.Filtered(r, FilterVariant(types.VariantProject))
		require.NoError(t, err)
		assert.Equal(t, []types.NodeIdx{1, 2, 3}, matches)
		return nil
	})
	require.NoError(t, err)
}

func TestFilteredCreatedAtOrdering(t *testing.T) {
	rs, idx := openTestIndex(t)
	projectTestNode(t, rs, idx, 1, types.VariantObject, "a", "", nil)
	projectTestNode(t, rs, idx, 2, types.VariantObject, "b", "", nil)

	err := rs.View(func(r *recordstore.ReadTxn) error {
		cutoff := time.Date(2026, 1, 1, 1, 30, 0, 0, time.UTC).Format(time.RFC3339Nano)
		matches, err := idx.Filtered(r, Gt(FieldCreatedAt, cutoff))
		require.NoError(t, err)
		assert.Equal(t, []types.NodeIdx{2}, matches)
		return nil
	})
	require.NoError(t, err)
}

func TestRemoveDropsProjection(t *testing.T) {
	rs, idx := openTestIndex(t)
	projectTestNode(t, rs, idx, 1, types.VariantProject, "p1", "", nil)

	err := rs.Update(func(w *recordstore.WriteTxn) error {
		return idx.Remove(w, 1)
	})
	require.NoError(t, err)

	err = rs.View(func(r *recordstore.ReadTxn) error {
		matches, err := idx.Filtered(r, FilterVariant(types.VariantProject))
		require.NoError(t, err)
		assert.Empty(t, matches)
		return nil
	})
	require.NoError(t, err)
}
