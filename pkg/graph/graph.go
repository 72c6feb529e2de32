// Package graph is the GS layer: a typed, versioned property graph of nodes
// and directed edges on top of pkg/recordstore. It owns the compact u32 node
// index space, the ulid<->idx maps, and adjacency storage for typed edges.
package graph

import (
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

const (
	ksNodes      = "gs_nodes"
	ksULIDToIdx  = "gs_ulid_to_idx"
	ksIdxToULID  = "gs_idx_to_ulid"
	ksEdgesOut   = "gs_edges_out"
	ksEdgesIn    = "gs_edges_in"
	ksNodeSeq    = "gs_node_seq"
	ksEvents     = "gs_events"
)

// Keyspaces lists every recordstore keyspace the graph layer owns, for
// callers assembling the full keyspace set passed to recordstore.Open.
func Keyspaces() []string {
	return []string{ksNodes, ksULIDToIdx, ksIdxToULID, ksEdgesOut, ksEdgesIn, ksNodeSeq, ksEvents}
}

// Store wraps a recordstore.Store with graph-shaped operations. It holds no
// state of its own; every method takes the caller's read or write
// transaction, matching the RS layer's transaction-passing convention.
type Store struct {
	rs *recordstore.Store
}

func New(rs *recordstore.Store) *Store {
	return &Store{rs: rs}
}

// Direction selects which side of an edge triple GetRelations walks.
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

// Relation is one typed edge, oriented the way it was stored.
type Relation struct {
	Source types.NodeIdx
	Target types.NodeIdx
	Type   uint32
}

// CreateNode assigns the node the next free NodeIdx, stores its record, and
// registers both directions of the ulid<->idx map. The caller supplies the
// node's ULID (time-sortable ID, minted by types.NewID) but not its Idx.
func (s *Store) CreateNode(w *recordstore.WriteTxn, n *types.Node) (types.NodeIdx, error) {
	if _, exists := w.Get(ksULIDToIdx, n.ID[:]); exists {
		return 0, arerr.NewConflict("id", "node %s already exists", n.ID.String())
	}

	seq, err := w.NextSequence(ksNodeSeq)
	if err != nil {
		return 0, fmt.Errorf("graph: allocate node idx: %w", err)
	}
	idx := types.NodeIdx(seq)
	n.Idx = idx

	rec := encodeNode(n)
	if err := w.Put(ksNodes, idxKey(idx), rec.Encode()); err != nil {
		return 0, fmt.Errorf("graph: put node record: %w", err)
	}
	if err := w.Put(ksULIDToIdx, n.ID[:], idxKey(idx)); err != nil {
		return 0, fmt.Errorf("graph: put ulid map: %w", err)
	}
	if err := w.Put(ksIdxToULID, idxKey(idx), n.ID[:]); err != nil {
		return 0, fmt.Errorf("graph: put idx map: %w", err)
	}

	return idx, nil
}

// PutNode overwrites an existing node's record in place, used by updates
// (label mutation, status transitions, rename) that do not change Idx or ID.
func (s *Store) PutNode(w *recordstore.WriteTxn, n *types.Node) error {
	if _, exists := w.Get(ksIdxToULID, idxKey(n.Idx)); !exists {
		return arerr.NewNotFound("node idx %d does not exist", n.Idx)
	}
	rec := encodeNode(n)
	if err := w.Put(ksNodes, idxKey(n.Idx), rec.Encode()); err != nil {
		return fmt.Errorf("graph: put node record: %w", err)
	}
	return nil
}

// GetNode fetches and decodes the node at idx.
func (s *Store) GetNode(r *recordstore.ReadTxn, idx types.NodeIdx) (*types.Node, error) {
	raw, ok := r.Get(ksNodes, idxKey(idx))
	if !ok {
		return nil, arerr.NewNotFound("node idx %d not found", idx)
	}
	rec, err := recordstore.DecodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("graph: decode node %d: %w", idx, err)
	}
	return decodeNode(rec, idx)
}

// GetIdxFromULID resolves a node's public ULID to its internal index.
func (s *Store) GetIdxFromULID(r *recordstore.ReadTxn, id types.ID) (types.NodeIdx, bool) {
	b, ok := r.Get(ksULIDToIdx, id[:])
	if !ok {
		return 0, false
	}
	return parseIdxKey(b)
}

// GetULIDFromIdx resolves an internal index back to its public ULID.
func (s *Store) GetULIDFromIdx(r *recordstore.ReadTxn, idx types.NodeIdx) (types.ID, bool) {
	b, ok := r.Get(ksIdxToULID, idxKey(idx))
	if !ok {
		return types.ID{}, false
	}
	var id types.ID
	copy(id[:], b)
	return id, true
}

// edgeKey encodes a (source, type, target) triple so that scanning with a
// source-prefixed key enumerates every outgoing edge of a given type family
// in type order, then target order.
func edgeKey(a types.NodeIdx, edgeType uint32, b types.NodeIdx) []byte {
	k := make([]byte, 0, 12)
	k = appendU32(k, uint32(a))
	k = appendU32(k, edgeType)
	k = appendU32(k, uint32(b))
	return k
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func decodeU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// CreateRelation stores a typed directed edge src -> dst in both the
// forward (edges_out) and reverse (edges_in) keyspaces so traversal in
// either direction never requires a full scan.
func (s *Store) CreateRelation(w *recordstore.WriteTxn, src, dst types.NodeIdx, edgeType uint32) error {
	if _, exists := w.Get(ksIdxToULID, idxKey(src)); !exists {
		return arerr.NewNotFound("relation source idx %d does not exist", src)
	}
	if _, exists := w.Get(ksIdxToULID, idxKey(dst)); !exists {
		return arerr.NewNotFound("relation target idx %d does not exist", dst)
	}

	outKey := edgeKey(src, edgeType, dst)
	if _, exists := w.Get(ksEdgesOut, outKey); exists {
		return arerr.NewConflict("relation", "relation %d--%d-->%d already exists", src, edgeType, dst)
	}
	if err := w.Put(ksEdgesOut, outKey, nil); err != nil {
		return fmt.Errorf("graph: put edges_out: %w", err)
	}

	inKey := edgeKey(dst, edgeType, src)
	if err := w.Put(ksEdgesIn, inKey, nil); err != nil {
		return fmt.Errorf("graph: put edges_in: %w", err)
	}

	return nil
}

// DeleteRelation removes a previously created edge in both directions. It is
// not an error to delete a relation that does not exist.
func (s *Store) DeleteRelation(w *recordstore.WriteTxn, src, dst types.NodeIdx, edgeType uint32) error {
	if err := w.Delete(ksEdgesOut, edgeKey(src, edgeType, dst)); err != nil {
		return fmt.Errorf("graph: delete edges_out: %w", err)
	}
	if err := w.Delete(ksEdgesIn, edgeKey(dst, edgeType, src)); err != nil {
		return fmt.Errorf("graph: delete edges_in: %w", err)
	}
	return nil
}

// GetRelations enumerates edges touching idx, optionally filtered to a set
// of edge types (nil/empty means "any type"), in the requested direction.
func (s *Store) GetRelations(r *recordstore.ReadTxn, idx types.NodeIdx, edgeTypes []uint32, dir Direction) ([]Relation, error) {
	allow := func(t uint32) bool {
		if len(edgeTypes) == 0 {
			return true
		}
		for _, want := range edgeTypes {
			if want == t {
				return true
			}
		}
		return false
	}

	var out []Relation
	if dir == DirectionOut || dir == DirectionBoth {
		err := r.Scan(ksEdgesOut, appendU32(nil, uint32(idx)), func(k, _ []byte) bool {
			edgeType := decodeU32(k[4:8])
			target := types.NodeIdx(decodeU32(k[8:12]))
			if allow(edgeType) {
				out = append(out, Relation{Source: idx, Target: target, Type: edgeType})
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("graph: scan edges_out: %w", err)
		}
	}
	if dir == DirectionIn || dir == DirectionBoth {
		err := r.Scan(ksEdgesIn, appendU32(nil, uint32(idx)), func(k, _ []byte) bool {
			edgeType := decodeU32(k[4:8])
			other := types.NodeIdx(decodeU32(k[8:12]))
			if allow(edgeType) {
				// Stored reverse: key is (idx, type, other) meaning other -> idx.
				out = append(out, Relation{Source: other, Target: idx, Type: edgeType})
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("graph: scan edges_in: %w", err)
		}
	}
	return out, nil
}

// RegisterEvent records which node indices an append-only log event touched
// and the event's outcome variant (spec.md §6's event record `outcome`
// byte), so the event bus and replay-on-startup can resolve an event_id to
// the affected set and its Created/Updated/Deleted/Available classification
// without replaying the log, and stamps event_id onto each affected node's
// last_event_id field so replay can tell which entries a node already
// reflects.
func (s *Store) RegisterEvent(w *recordstore.WriteTxn, eventID types.ID, affected []types.NodeIdx, variant types.EventVariant) error {
	rec := recordstore.NewRecord()
	buf := make([]byte, 0, len(affected)*4)
	for _, idx := range affected {
		buf = appendU32(buf, uint32(idx))
	}
	rec.PutBytes(0, buf)
	rec.PutString(1, string(variant))
	if err := w.Put(ksEvents, eventID[:], rec.Encode()); err != nil {
		return fmt.Errorf("graph: put event: %w", err)
	}

	for _, idx := range affected {
		node, err := s.GetNode(w.GetTxn(), idx)
		if err != nil {
			return fmt.Errorf("graph: stamp last_event_id on %d: %w", idx, err)
		}
		node.LastEventID = eventID
		if err := s.PutNode(w, node); err != nil {
			return fmt.Errorf("graph: stamp last_event_id on %d: %w", idx, err)
		}
	}
	return nil
}

// GetEventNodes resolves a previously registered event id back to its
// affected node indices.
func (s *Store) GetEventNodes(r *recordstore.ReadTxn, eventID types.ID) ([]types.NodeIdx, bool) {
	affected, _, ok := s.GetEvent(r, eventID)
	return affected, ok
}

// GetEvent resolves a previously registered event id back to its affected
// node indices and outcome variant.
func (s *Store) GetEvent(r *recordstore.ReadTxn, eventID types.ID) ([]types.NodeIdx, types.EventVariant, bool) {
	raw, ok := r.Get(ksEvents, eventID[:])
	if !ok {
		return nil, "", false
	}
	rec, err := recordstore.DecodeRecord(raw)
	if err != nil {
		return nil, "", false
	}
	buf, ok := rec.GetBytes(0)
	if !ok {
		return nil, "", false
	}
	out := make([]types.NodeIdx, 0, len(buf)/4)
	for i := 0; i+4 <= len(buf); i += 4 {
		out = append(out, types.NodeIdx(decodeU32(buf[i:i+4])))
	}
	variantStr, _ := rec.GetString(1)
	return out, types.EventVariant(variantStr), true
}
