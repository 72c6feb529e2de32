package universe

import (
	"encoding/json"
	"time"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// row field ids within the projection record — private to this package, not
// related to pkg/types' node field ids, since the projection only carries
// the whitelisted subset in string form for uniform filter evaluation.
const (
	rowName uint16 = iota
	rowDescription
	rowTitle
	rowVariant
	rowTag
	rowDataClass
	rowStatus
	rowCreatedAt
	rowLicense
	rowDataLicense
	rowLabelKeys
	rowLabelValues
	rowLabelVariants
)

// Row is the decoded projection of one node, ready for filter evaluation.
// Every field holds one or more string values; single-valued fields hold
// exactly one entry, label fields hold one entry per label.
type Row map[Field][]string

func projectNode(n *types.Node) *recordstore.Record {
	rec := recordstore.NewRecord()
	rec.PutString(rowName, n.Name)
	rec.PutString(rowDescription, n.Description)
	rec.PutString(rowTitle, n.Title)
	rec.PutString(rowVariant, n.Variant.String())
	rec.PutString(rowTag, n.Tag)
	rec.PutString(rowDataClass, n.DataClass)
	rec.PutString(rowStatus, string(n.Status))
	rec.PutString(rowCreatedAt, n.CreatedAt.UTC().Format(time.RFC3339Nano))
	rec.PutString(rowLicense, n.License)
	rec.PutString(rowDataLicense, n.DataLicense)

	keys := make([]string, 0, len(n.Labels))
	values := make([]string, 0, len(n.Labels))
	variants := make([]string, 0, len(n.Labels))
	for _, kv := range n.Labels {
		keys = append(keys, kv.Key)
		values = append(values, kv.Value)
		variants = append(variants, string(kv.Variant))
	}
	if b, err := json.Marshal(keys); err == nil {
		rec.PutBytes(rowLabelKeys, b)
	}
	if b, err := json.Marshal(values); err == nil {
		rec.PutBytes(rowLabelValues, b)
	}
	if b, err := json.Marshal(variants); err == nil {
		rec.PutBytes(rowLabelVariants, b)
	}
	return rec
}

func decodeRow(rec *recordstore.Record) Row {
	row := Row{}
	single := func(field Field, id uint16) {
		if v, ok := rec.GetString(id); ok {
			row[field] = []string{v}
		}
	}
	single(FieldName, rowName)
	single(FieldDescription, rowDescription)
	single(FieldTitle, rowTitle)
	single(FieldVariant, rowVariant)
	single(FieldTag, rowTag)
	single(FieldDataClass, rowDataClass)
	single(FieldStatus, rowStatus)
	single(FieldCreatedAt, rowCreatedAt)
	single(FieldLicense, rowLicense)
	single(FieldDataLicense, rowDataLicense)

	multi := func(field Field, id uint16) {
		if b, ok := rec.GetBytes(id); ok {
			var vals []string
			if err := json.Unmarshal(b, &vals); err == nil && len(vals) > 0 {
				row[field] = vals
			}
		}
	}
	multi(FieldLabelKey, rowLabelKeys)
	multi(FieldLabelValue, rowLabelValues)
	multi(FieldLabelVariant, rowLabelVariants)

	return row
}
