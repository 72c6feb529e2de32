package requestlayer

import (
	"sort"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// GetNode resolves id to its current Node, re-read fresh on every call since
// RL holds no cache.
func (l *Layer) GetNode(r *recordstore.ReadTxn, id types.ID) (*types.Node, error) {
	idx, ok := l.gs.GetIdxFromULID(r, id)
	if !ok {
		return nil, arerr.NewNotFound("requestlayer: %s does not exist", id.String())
	}
	return l.gs.GetNode(r, idx)
}

// GetGroupsFromRealm returns every group attached to realm via
// group_part_of_realm, ordered by node_idx ascending, per spec.md §8
// scenario S3 — groups linked only by group_administrates_realm (the
// auto-created admin group's edge) are not part_of the realm and are
// excluded.
func (l *Layer) GetGroupsFromRealm(r *recordstore.ReadTxn, realm types.ID) ([]*types.Node, error) {
	realmIdx, ok := l.gs.GetIdxFromULID(r, realm)
	if !ok {
		return nil, arerr.NewNotFound("requestlayer: realm %s does not exist", realm.String())
	}
	rels, err := l.gs.GetRelations(r, realmIdx, []uint32{types.RelGroupPartOfRealm}, graph.DirectionIn)
	if err != nil {
		return nil, err
	}

	idxs := make([]types.NodeIdx, len(rels))
	for i, rel := range rels {
		idxs[i] = rel.Source
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	nodes := make([]*types.Node, len(idxs))
	for i, idx := range idxs {
		node, err := l.gs.GetNode(r, idx)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}

// ListChildren returns id's direct belongs_to children (not the full
// subresource closure — see ListSubresources for that), ordered by node_idx
// ascending.
func (l *Layer) ListChildren(r *recordstore.ReadTxn, id types.ID) ([]*types.Node, error) {
	idx, ok := l.gs.GetIdxFromULID(r, id)
	if !ok {
		return nil, arerr.NewNotFound("requestlayer: %s does not exist", id.String())
	}
	rels, err := l.gs.GetRelations(r, idx, []uint32{types.RelBelongsTo}, graph.DirectionIn)
	if err != nil {
		return nil, err
	}

	idxs := make([]types.NodeIdx, len(rels))
	for i, rel := range rels {
		idxs[i] = rel.Source
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	nodes := make([]*types.Node, len(idxs))
	for i, idx := range idxs {
		node, err := l.gs.GetNode(r, idx)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}

// ListSubresources returns the full containment closure beneath id (every
// project/folder/object transitively belongs_to-linked under it), ordered by
// node_idx ascending.
func (l *Layer) ListSubresources(r *recordstore.ReadTxn, id types.ID) ([]*types.Node, error) {
	idx, ok := l.gs.GetIdxFromULID(r, id)
	if !ok {
		return nil, arerr.NewNotFound("requestlayer: %s does not exist", id.String())
	}
	descendants, err := l.gs.SubresourceEnumeration(r, idx)
	if err != nil {
		return nil, err
	}

	sort.Slice(descendants, func(i, j int) bool { return descendants[i] < descendants[j] })

	nodes := make([]*types.Node, len(descendants))
	for i, d := range descendants {
		node, err := l.gs.GetNode(r, d)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}
