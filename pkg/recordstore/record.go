package recordstore

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/aruna-project/aruna-server/pkg/arerr"
)

// Record is a field-addressed binary blob: a sequence of
// (field_id: u16, len: u32, bytes) entries sorted by field_id ascending, per
// the on-disk node record format.
type Record struct {
	fields map[uint16][]byte
}

// NewRecord returns an empty record ready for field writes.
func NewRecord() *Record {
	return &Record{fields: make(map[uint16][]byte)}
}

func (r *Record) PutBytes(id uint16, v []byte) { r.fields[id] = v }
func (r *Record) PutString(id uint16, v string) { r.fields[id] = []byte(v) }
func (r *Record) PutUint64(id uint16, v uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	r.fields[id] = b
}
func (r *Record) PutUint32(id uint16, v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	r.fields[id] = b
}
func (r *Record) PutBool(id uint16, v bool) {
	if v {
		r.fields[id] = []byte{1}
	} else {
		r.fields[id] = []byte{0}
	}
}
func (r *Record) PutTime(id uint16, t time.Time) {
	r.fields[id] = []byte(t.UTC().Format(time.RFC3339Nano))
}

// GetBytes returns the raw bytes stored for id, or false if absent.
func (r *Record) GetBytes(id uint16) ([]byte, bool) {
	v, ok := r.fields[id]
	return v, ok
}

// RequireBytes returns the raw bytes for id or an Invalid error.
func (r *Record) RequireBytes(id uint16) ([]byte, error) {
	v, ok := r.fields[id]
	if !ok {
		return nil, arerr.NewInvalid("required field %d missing", id)
	}
	return v, nil
}

func (r *Record) GetString(id uint16) (string, bool) {
	v, ok := r.fields[id]
	if !ok {
		return "", false
	}
	return string(v), true
}

func (r *Record) RequireString(id uint16) (string, error) {
	v, err := r.RequireBytes(id)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (r *Record) GetUint64(id uint16) (uint64, bool) {
	v, ok := r.fields[id]
	if !ok || len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

func (r *Record) GetUint32(id uint16) (uint32, bool) {
	v, ok := r.fields[id]
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

func (r *Record) GetBool(id uint16) (bool, bool) {
	v, ok := r.fields[id]
	if !ok || len(v) != 1 {
		return false, false
	}
	return v[0] == 1, true
}

func (r *Record) GetTime(id uint16) (time.Time, bool) {
	v, ok := r.fields[id]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Encode serializes the record as a sequence of
// (u16 field_id | u32 len | bytes), sorted by field_id ascending.
func (r *Record) Encode() []byte {
	ids := make([]uint16, 0, len(r.fields))
	for id := range r.fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := 0
	for _, id := range ids {
		total += 2 + 4 + len(r.fields[id])
	}

	out := make([]byte, 0, total)
	for _, id := range ids {
		v := r.fields[id]
		var hdr [6]byte
		binary.BigEndian.PutUint16(hdr[0:2], id)
		binary.BigEndian.PutUint32(hdr[2:6], uint32(len(v)))
		out = append(out, hdr[:]...)
		out = append(out, v...)
	}
	return out
}

// DecodeRecord parses bytes produced by Encode.
func DecodeRecord(b []byte) (*Record, error) {
	r := NewRecord()
	pos := 0
	for pos < len(b) {
		if pos+6 > len(b) {
			return nil, fmt.Errorf("recordstore: truncated field header at offset %d", pos)
		}
		id := binary.BigEndian.Uint16(b[pos : pos+2])
		length := binary.BigEndian.Uint32(b[pos+2 : pos+6])
		pos += 6
		if pos+int(length) > len(b) {
			return nil, fmt.Errorf("recordstore: truncated field value at offset %d", pos)
		}
		r.fields[id] = b[pos : pos+int(length)]
		pos += int(length)
	}
	return r, nil
}
