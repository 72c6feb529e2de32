// Package universe is the UI layer: a filterable projection of whitelisted
// node fields over pkg/recordstore, used by the request layer's read path
// and by uniqueness checks inside write transactions (spec.md §4.3).
package universe

import (
	"encoding/binary"
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

const ksProjection = "ui_projection"

// Keyspaces lists the recordstore keyspaces the universe index owns.
func Keyspaces() []string {
	return []string{ksProjection}
}

// Field is a whitelisted, filterable projection field. Only these names may
// appear in a FilterExpr; there is no raw-numeric-variant escape hatch (spec
// Open Question (c)) — callers needing a variant filter use FilterVariant.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldTitle       Field = "title"
	FieldVariant     Field = "variant"
	FieldTag         Field = "tag"
	FieldDataClass   Field = "data_class"
	FieldStatus      Field = "status"
	FieldCreatedAt   Field = "created_at"
	FieldLabelKey    Field = "labels.key"
	FieldLabelValue  Field = "labels.value"
	FieldLabelVariant Field = "labels.variant"
	FieldLicense     Field = "license"
	FieldDataLicense Field = "data_license"
)

var whitelist = map[Field]bool{
	FieldName: true, FieldDescription: true, FieldTitle: true, FieldVariant: true,
	FieldTag: true, FieldDataClass: true, FieldStatus: true, FieldCreatedAt: true,
	FieldLabelKey: true, FieldLabelValue: true, FieldLabelVariant: true,
	FieldLicense: true, FieldDataLicense: true,
}

// Index wraps a recordstore.Store with projection read/write operations.
type Index struct {
	rs *recordstore.Store
}

func New(rs *recordstore.Store) *Index {
	return &Index{rs: rs}
}

func idxKey(idx types.NodeIdx) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(idx))
	return b
}

// Project (re)writes the searchable projection of n at its own idx. Called
// by every write transaction that creates or mutates a node, immediately
// after the authoritative GS write, so UI and GS never observe different
// commits for the same node.
func (s *Index) Project(w *recordstore.WriteTxn, n *types.Node) error {
	rec := projectNode(n)
	if err := w.Put(ksProjection, idxKey(n.Idx), rec.Encode()); err != nil {
		return fmt.Errorf("universe: project node %d: %w", n.Idx, err)
	}
	return nil
}

// Remove deletes idx's projection, e.g. on hard delete of a node.
func (s *Index) Remove(w *recordstore.WriteTxn, idx types.NodeIdx) error {
	if err := w.Delete(ksProjection, idxKey(idx)); err != nil {
		return fmt.Errorf("universe: remove projection %d: %w", idx, err)
	}
	return nil
}

// Filtered evaluates expr against every projected node and returns the
// matching indices, ascending, with no duplicates — the filtered_universe
// contract from spec.md §4.3.
func (s *Index) Filtered(r *recordstore.ReadTxn, expr Expr) ([]types.NodeIdx, error) {
	var out []types.NodeIdx
	err := r.ForEach(ksProjection, func(key, value []byte) bool {
		if len(key) != 4 {
			return true
		}
		idx := types.NodeIdx(binary.BigEndian.Uint32(key))
		rec, err := recordstore.DecodeRecord(value)
		if err != nil {
			return true
		}
		row := decodeRow(rec)
		if expr == nil || expr.Eval(row) {
			out = append(out, idx)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("universe: filtered scan: %w", err)
	}
	return out, nil
}

// FilterVariant is the typed helper replacing raw numeric variant=N filters
// (spec Open Question (c)).
func FilterVariant(v types.Variant) Expr {
	return &cmpExpr{field: FieldVariant, op: opEq, value: v.String()}
}
