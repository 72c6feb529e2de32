package graph

import (
	"encoding/binary"
	"encoding/json"

	"github.com/oklog/ulid/v2"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// encodeNode projects a types.Node into a field-tagged recordstore.Record.
// Variant-specific fields are only written for the variants that use them,
// mirroring the original source's per-variant field sets.
func encodeNode(n *types.Node) *recordstore.Record {
	r := recordstore.NewRecord()
	r.PutBytes(types.FieldID, n.ID[:])
	r.PutBytes(types.FieldVariant, []byte{byte(n.Variant)})
	r.PutString(types.FieldName, n.Name)
	r.PutString(types.FieldDescription, n.Description)
	r.PutTime(types.FieldCreatedAt, n.CreatedAt)
	r.PutTime(types.FieldLastModified, n.LastModified)
	if n.LastEventID != (ulid.ULID{}) {
		r.PutBytes(types.FieldLastEventID, n.LastEventID[:])
	}
	if len(n.Labels) > 0 {
		if b, err := json.Marshal(n.Labels); err == nil {
			r.PutBytes(types.FieldLabels, b)
		}
	}

	switch n.Variant {
	case types.VariantProject, types.VariantFolder, types.VariantObject:
		r.PutString(types.FieldTagOrTitle, n.Title)
		r.PutUint64(types.FieldContentLen, uint64(n.ContentLen))
		r.PutString(types.FieldVisibility, string(n.Visibility))
		r.PutString(types.FieldStatus, string(n.Status))
		r.PutString(types.FieldLicense, n.License)
		r.PutString(types.FieldDataLicense, n.DataLicense)
		r.PutString(types.FieldDataClass, n.DataClass)
		r.PutBool(types.FieldLocked, n.Locked)
		if len(n.Hashes) > 0 {
			if b, err := json.Marshal(n.Hashes); err == nil {
				r.PutBytes(types.FieldHashes, b)
			}
		}
		if len(n.Authors) > 0 {
			if b, err := json.Marshal(n.Authors); err == nil {
				r.PutBytes(types.FieldAuthors, b)
			}
		}
	case types.VariantUser:
		r.PutString(types.FieldFirstName, n.FirstName)
		r.PutString(types.FieldLastName, n.LastName)
		r.PutString(types.FieldEmail, n.Email)
		r.PutBool(types.FieldGlobalAdmin, n.GlobalAdmin)
	case types.VariantRealm:
		r.PutString(types.FieldTagOrTitle, n.Tag)
		r.PutBool(types.FieldIsAdminRealm, n.IsAdminRealm)
	}

	return r
}

// decodeNode reverses encodeNode. idx is stamped on the returned node since
// it is not itself part of the record (it lives in the ulid/idx map keys).
func decodeNode(rec *recordstore.Record, idx types.NodeIdx) (*types.Node, error) {
	idBytes, err := rec.RequireBytes(types.FieldID)
	if err != nil {
		return nil, err
	}
	var id ulid.ULID
	copy(id[:], idBytes)

	variantByte, err := rec.RequireBytes(types.FieldVariant)
	if err != nil {
		return nil, err
	}
	if len(variantByte) != 1 {
		return nil, arerr.NewInternal("malformed variant field for node %s", id.String())
	}
	variant := types.Variant(variantByte[0])

	n := &types.Node{
		ID:      id,
		Idx:     idx,
		Variant: variant,
	}
	n.Name, _ = rec.GetString(types.FieldName)
	n.Description, _ = rec.GetString(types.FieldDescription)
	n.CreatedAt, _ = rec.GetTime(types.FieldCreatedAt)
	n.LastModified, _ = rec.GetTime(types.FieldLastModified)
	if b, ok := rec.GetBytes(types.FieldLastEventID); ok && len(b) == 16 {
		copy(n.LastEventID[:], b)
	}
	if b, ok := rec.GetBytes(types.FieldLabels); ok {
		_ = json.Unmarshal(b, &n.Labels)
	}

	switch variant {
	case types.VariantProject, types.VariantFolder, types.VariantObject:
		n.Title, _ = rec.GetString(types.FieldTagOrTitle)
		if v, ok := rec.GetUint64(types.FieldContentLen); ok {
			n.ContentLen = int64(v)
		}
		vis, _ := rec.GetString(types.FieldVisibility)
		n.Visibility = types.Visibility(vis)
		status, _ := rec.GetString(types.FieldStatus)
		n.Status = types.ObjectStatus(status)
		n.License, _ = rec.GetString(types.FieldLicense)
		n.DataLicense, _ = rec.GetString(types.FieldDataLicense)
		n.DataClass, _ = rec.GetString(types.FieldDataClass)
		n.Locked, _ = rec.GetBool(types.FieldLocked)
		if b, ok := rec.GetBytes(types.FieldHashes); ok {
			_ = json.Unmarshal(b, &n.Hashes)
		}
		if b, ok := rec.GetBytes(types.FieldAuthors); ok {
			_ = json.Unmarshal(b, &n.Authors)
		}
	case types.VariantUser:
		n.FirstName, _ = rec.GetString(types.FieldFirstName)
		n.LastName, _ = rec.GetString(types.FieldLastName)
		n.Email, _ = rec.GetString(types.FieldEmail)
		n.GlobalAdmin, _ = rec.GetBool(types.FieldGlobalAdmin)
	case types.VariantRealm:
		n.Tag, _ = rec.GetString(types.FieldTagOrTitle)
		n.IsAdminRealm, _ = rec.GetBool(types.FieldIsAdminRealm)
	}

	return n, nil
}

// idxKey encodes a NodeIdx as a fixed-width big-endian key so that bbolt's
// lexicographic cursor order matches numeric idx order — required for
// Scan-based callers (pkg/universe) that must return results idx-ascending.
func idxKey(idx types.NodeIdx) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(idx))
	return b
}

func parseIdxKey(b []byte) (types.NodeIdx, bool) {
	if len(b) != 4 {
		return 0, false
	}
	return types.NodeIdx(binary.BigEndian.Uint32(b)), true
}
