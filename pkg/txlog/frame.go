package txlog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/aruna-project/aruna-server/pkg/types"
)

// frameKind tags what a log frame's payload holds. Raft's own log entry
// types (command, noop, configuration-change) are mapped onto Kind at
// StoreLog time so replay can tell a real write-request envelope apart from
// raft-internal bookkeeping.
type frameKind uint8

const (
	kindCommand frameKind = iota
	kindNoop
	kindConfiguration
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// frame is one on-disk log record: u32 length | u128 event_id | u8 kind |
// bytes payload | u32 crc32c, exactly the binary format spec.md §4.4 pins
// for L. length covers everything between itself and the checksum.
type frame struct {
	EventID types.ID
	Kind    frameKind
	Payload []byte
}

// encode serializes f to its on-disk byte representation.
func (f frame) encode() []byte {
	body := make([]byte, 0, 16+1+len(f.Payload))
	body = append(body, f.EventID[:]...)
	body = append(body, byte(f.Kind))
	body = append(body, f.Payload...)

	out := make([]byte, 0, 4+len(body)+4)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	out = append(out, lenBuf[:]...)
	out = append(out, body...)

	checksum := crc32.Checksum(body, crcTable)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], checksum)
	out = append(out, crcBuf[:]...)
	return out
}

// decodeFrame parses one frame starting at b[0], returning the frame and the
// number of bytes consumed. It validates the trailing crc32c before
// returning, since a truncated or corrupted tail write (crash mid-fsync)
// must never be replayed as a valid entry.
func decodeFrame(b []byte) (frame, int, error) {
	if len(b) < 4 {
		return frame{}, 0, fmt.Errorf("txlog: truncated frame length")
	}
	length := binary.BigEndian.Uint32(b[0:4])
	total := 4 + int(length) + 4
	if len(b) < total {
		return frame{}, 0, fmt.Errorf("txlog: truncated frame body")
	}

	body := b[4 : 4+int(length)]
	wantCRC := binary.BigEndian.Uint32(b[4+int(length) : total])
	gotCRC := crc32.Checksum(body, crcTable)
	if wantCRC != gotCRC {
		return frame{}, 0, fmt.Errorf("txlog: crc mismatch: frame corrupted")
	}

	if len(body) < 17 {
		return frame{}, 0, fmt.Errorf("txlog: frame body too short")
	}
	var f frame
	copy(f.EventID[:], body[0:16])
	f.Kind = frameKind(body[16])
	f.Payload = append([]byte(nil), body[17:]...)

	return f, total, nil
}
