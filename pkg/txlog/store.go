// Package txlog is the L layer: an append-only, totally-ordered log of
// write-request envelopes, and the raft.LogStore/raft.StableStore the
// transaction controller's raft.Raft instance runs on. Replaces the
// teacher's github.com/hashicorp/raft-boltdb usage (see DESIGN.md) because
// spec.md §4.4 pins an exact binary frame format that a generic BoltDB log
// store does not produce.
package txlog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	"github.com/oklog/ulid/v2"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// logRecord is the raft.Log shape carried inside a frame's payload. Only the
// fields raft itself requires durable are kept; Extensions is preserved
// verbatim since raft's membership-change machinery relies on it surviving
// a restart untouched.
type logRecord struct {
	Index      uint64
	Term       uint64
	Type       raft.LogType
	Data       []byte
	Extensions []byte
	AppendedAt time.Time
}

func kindFor(t raft.LogType) frameKind {
	switch t {
	case raft.LogNoop:
		return kindNoop
	case raft.LogConfiguration:
		return kindConfiguration
	default:
		return kindCommand
	}
}

// Store is the append-only log file plus its in-memory index-to-offset map,
// and also implements raft.StableStore over a small recordstore keyspace —
// stable-store entries are raft bookkeeping (current term, voted-for), not
// write-request envelopes, so they do not need the frame format.
type Store struct {
	mu      sync.Mutex
	file    *os.File
	offsets map[uint64]int64 // raft log index -> byte offset of its frame
	events  map[uint64]types.ID
	first   uint64
	last    uint64

	stable *recordstore.Store
}

const ksStable = "txlog_stable"

// Keyspaces lists the recordstore keyspaces Store's StableStore half owns.
func Keyspaces() []string {
	return []string{ksStable}
}

// Open opens (creating if necessary) the log file under dataDir, replaying
// it to rebuild the in-memory offset index, and wires stable to the
// recordstore keyspace used for raft bookkeeping.
func Open(dataDir string, stable *recordstore.Store) (*Store, error) {
	path := filepath.Join(dataDir, "aruna.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("txlog: open: %w", err)
	}

	s := &Store{
		file:    f,
		offsets: make(map[uint64]int64),
		events:  make(map[uint64]types.ID),
		stable:  stable,
	}
	if err := s.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.file.Close()
}

// rebuildIndex scans the entire log file once at startup, recording each
// frame's raft index, offset, and event id. A trailing partial frame (crash
// mid-write) is truncated away rather than treated as an error.
func (s *Store) rebuildIndex() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("txlog: stat: %w", err)
	}
	buf := make([]byte, info.Size())
	if _, err := s.file.ReadAt(buf, 0); err != nil && len(buf) > 0 {
		return fmt.Errorf("txlog: read: %w", err)
	}

	var offset int64
	for offset < int64(len(buf)) {
		f, n, err := decodeFrame(buf[offset:])
		if err != nil {
			// Truncate the dangling partial write and stop; everything
			// before it is already indexed.
			if truncErr := s.file.Truncate(offset); truncErr != nil {
				return fmt.Errorf("txlog: truncate partial tail: %w", truncErr)
			}
			break
		}
		var rec logRecord
		if err := json.Unmarshal(f.Payload, &rec); err != nil {
			return fmt.Errorf("txlog: decode log record at offset %d: %w", offset, err)
		}
		s.offsets[rec.Index] = offset
		s.events[rec.Index] = f.EventID
		if s.first == 0 || rec.Index < s.first {
			s.first = rec.Index
		}
		if rec.Index > s.last {
			s.last = rec.Index
		}
		offset += int64(n)
	}
	return nil
}

// EventID returns the event id stamped on the frame at raft index idx, the
// same id the write request's handler received as its transaction id.
func (s *Store) EventID(idx uint64) (types.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.events[idx]
	return id, ok
}

func (s *Store) FirstIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first, nil
}

func (s *Store) LastIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

func (s *Store) GetLog(index uint64, log *raft.Log) error {
	s.mu.Lock()
	offset, ok := s.offsets[index]
	s.mu.Unlock()
	if !ok {
		return raft.ErrLogNotFound
	}

	hdr := make([]byte, 8)
	if _, err := s.file.ReadAt(hdr, offset); err != nil {
		return fmt.Errorf("txlog: read frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	total := 4 + int(length) + 4
	buf := make([]byte, total)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("txlog: read frame: %w", err)
	}
	f, _, err := decodeFrame(buf)
	if err != nil {
		return err
	}
	var rec logRecord
	if err := json.Unmarshal(f.Payload, &rec); err != nil {
		return fmt.Errorf("txlog: decode log record: %w", err)
	}

	log.Index = rec.Index
	log.Term = rec.Term
	log.Type = rec.Type
	log.Data = rec.Data
	log.Extensions = rec.Extensions
	log.AppendedAt = rec.AppendedAt
	return nil
}

func (s *Store) StoreLog(log *raft.Log) error {
	return s.StoreLogs([]*raft.Log{log})
}

func (s *Store) StoreLogs(logs []*raft.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("txlog: seek end: %w", err)
	}

	entropy := ulid.Monotonic(ulid.DefaultEntropy(), 0)
	for _, log := range logs {
		rec := logRecord{
			Index:      log.Index,
			Term:       log.Term,
			Type:       log.Type,
			Data:       log.Data,
			Extensions: log.Extensions,
			AppendedAt: log.AppendedAt,
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("txlog: encode log record: %w", err)
		}
		eventID := types.NewID(time.Now(), entropy)
		f := frame{EventID: eventID, Kind: kindFor(log.Type), Payload: payload}
		encoded := f.encode()

		if _, err := s.file.WriteAt(encoded, offset); err != nil {
			return fmt.Errorf("txlog: write frame: %w", err)
		}
		s.offsets[log.Index] = offset
		s.events[log.Index] = eventID
		if s.first == 0 || log.Index < s.first {
			s.first = log.Index
		}
		if log.Index > s.last {
			s.last = log.Index
		}
		offset += int64(len(encoded))
	}
	return s.file.Sync()
}

// DeleteRange removes log entries between min and max inclusive from the
// in-memory index. Per raft's contract this is only ever called with a
// range at the head or tail of the log (snapshot compaction, or discarding
// an uncommitted suffix after a term change); the underlying bytes are left
// in the file, which is append-only by construction and never rewritten or
// compacted.
func (s *Store) DeleteRange(min, max uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := min; i <= max; i++ {
		delete(s.offsets, i)
		delete(s.events, i)
	}
	if min <= s.first && max >= s.first {
		s.first = max + 1
	}
	if min <= s.last && max >= s.last {
		s.last = min - 1
	}
	return nil
}

// StableStore: raft bookkeeping (current term, last vote) over recordstore.

func (s *Store) Set(key []byte, val []byte) error {
	return s.stable.Update(func(w *recordstore.WriteTxn) error {
		return w.Put(ksStable, key, val)
	})
}

// Get returns the value for key, or nil with no error if key is absent —
// matching the teacher's raft-boltdb convention that a fresh stable store
// is indistinguishable from an empty one.
func (s *Store) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.stable.View(func(r *recordstore.ReadTxn) error {
		if v, ok := r.Get(ksStable, key); ok {
			out = v
		}
		return nil
	})
	return out, err
}

func (s *Store) SetUint64(key []byte, val uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return s.Set(key, b)
}

func (s *Store) GetUint64(key []byte) (uint64, error) {
	b, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("txlog: malformed uint64 value for key %q", key)
	}
	return binary.BigEndian.Uint64(b), nil
}
