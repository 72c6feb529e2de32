package graph

import (
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// UpstreamAncestors follows outgoing belongs_to edges (stored child ->
// parent) from idx to the root of its hierarchy (a realm has no belongs_to
// parent), returning every
// ancestor encountered, nearest first. Used to resolve an object's full
// containment chain for permission and hook-scope evaluation.
func (s *Store) UpstreamAncestors(r *recordstore.ReadTxn, idx types.NodeIdx) ([]types.NodeIdx, error) {
	var ancestors []types.NodeIdx
	visited := map[types.NodeIdx]bool{idx: true}
	frontier := []types.NodeIdx{idx}

	for len(frontier) > 0 {
		cur := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		rels, err := s.GetRelations(r, cur, []uint32{types.RelBelongsTo}, DirectionOut)
		if err != nil {
			return nil, fmt.Errorf("graph: upstream ancestors: %w", err)
		}
		for _, rel := range rels {
			if visited[rel.Target] {
				continue
			}
			visited[rel.Target] = true
			ancestors = append(ancestors, rel.Target)
			frontier = append(frontier, rel.Target)
		}
	}
	return ancestors, nil
}

// PermissionWalk performs a DFS from principalIdx along the permission
// relation family (RelPermissionRead..RelPermissionAdmin) and group
// membership edges, returning the maximum permission level it can reach on
// targetIdx or one of targetIdx's ancestors. A -1 result means no path
// grants any permission.
//
// The walk follows two kinds of forward edges from the principal: direct
// permission edges to a resource (or one of its ancestors, since permission
// on a project implies permission on everything it contains) and
// group-membership edges, recursing into the group's own permission edges.
func (s *Store) PermissionWalk(r *recordstore.ReadTxn, principalIdx, targetIdx types.NodeIdx) (int, error) {
	ancestors, err := s.UpstreamAncestors(r, targetIdx)
	if err != nil {
		return -1, err
	}
	targets := map[types.NodeIdx]bool{targetIdx: true}
	for _, a := range ancestors {
		targets[a] = true
	}

	best := -1
	visited := map[types.NodeIdx]bool{}

	var walk func(from types.NodeIdx) error
	walk = func(from types.NodeIdx) error {
		if visited[from] {
			return nil
		}
		visited[from] = true

		rels, err := s.GetRelations(r, from, nil, DirectionOut)
		if err != nil {
			return err
		}
		for _, rel := range rels {
			if lvl := types.PermissionLevel(rel.Type); lvl >= 0 && targets[rel.Target] {
				if lvl > best {
					best = lvl
				}
			}
			switch rel.Type {
			case types.RelGroupPartOfRealm, types.RelGroupAdministratesRealm, types.RelOwnedBy:
				if err := walk(rel.Target); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(principalIdx); err != nil {
		return -1, fmt.Errorf("graph: permission walk: %w", err)
	}
	return best, nil
}

// SubresourceEnumeration performs a DFS along incoming belongs_to edges
// (child -> parent, walked parent to child) from a container node
// (project/folder), returning every descendant reachable
// through the containment hierarchy. Used to cascade status and label
// changes, and to answer "everything under this project" queries.
func (s *Store) SubresourceEnumeration(r *recordstore.ReadTxn, containerIdx types.NodeIdx) ([]types.NodeIdx, error) {
	var descendants []types.NodeIdx
	visited := map[types.NodeIdx]bool{containerIdx: true}
	frontier := []types.NodeIdx{containerIdx}

	for len(frontier) > 0 {
		cur := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		rels, err := s.GetRelations(r, cur, []uint32{types.RelBelongsTo}, DirectionIn)
		if err != nil {
			return nil, fmt.Errorf("graph: subresource enumeration: %w", err)
		}
		for _, rel := range rels {
			child := rel.Source
			if visited[child] {
				continue
			}
			visited[child] = true
			descendants = append(descendants, child)
			frontier = append(frontier, child)
		}
	}
	return descendants, nil
}
