// Package recordstore provides the embedded ordered key-value engine (RS):
// named keyspaces, multi-reader/single-writer transactions, and
// field-addressed binary records. Components that keep keyspaces here borrow
// its transactions; pkg/txlog's log file and raft's snapshot files are kept
// outside it.
package recordstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Store is the bbolt-backed record store. Keyspaces ("trees" in spec terms)
// are bbolt top-level buckets, created up front so callers never have to
// reason about missing-bucket errors inside a transaction.
type Store struct {
	db       *bolt.DB
	path     string
	keyspace []string
}

// Open opens (creating if necessary) the record store file under dataDir,
// pre-creating every keyspace in keyspaces.
func Open(dataDir string, keyspaces []string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "aruna.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("recordstore: open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, ks := range keyspaces {
			if _, err := tx.CreateBucketIfNotExists([]byte(ks)); err != nil {
				return fmt.Errorf("recordstore: create keyspace %s: %w", ks, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: dbPath, keyspace: keyspaces}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Backup streams a consistent point-in-time copy of the entire database to
// w, used by the transaction controller's raft.FSM.Snapshot — the standard
// bbolt snapshot mechanism (a read transaction's WriteTo) rather than a
// hand-rolled per-keyspace dump.
func (s *Store) Backup(w io.Writer) error {
	return s.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(w)
		return err
	})
}

// Restore replaces the database file's contents with the bytes read from r
// (produced by a prior Backup) and reopens it. The caller must hold off all
// other access to the store for the duration of this call.
func (s *Store) Restore(r io.Reader) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("recordstore: close before restore: %w", err)
	}

	tmp := s.path + ".restore"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("recordstore: create restore tempfile: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("recordstore: write restore tempfile: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("recordstore: close restore tempfile: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("recordstore: rename restore tempfile: %w", err)
	}

	db, err := bolt.Open(s.path, 0600, nil)
	if err != nil {
		return fmt.Errorf("recordstore: reopen after restore: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, ks := range s.keyspace {
			if _, err := tx.CreateBucketIfNotExists([]byte(ks)); err != nil {
				return fmt.Errorf("recordstore: recreate keyspace %s: %w", ks, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

// ReadTxn is a snapshot-isolated, concurrent-safe read transaction.
type ReadTxn struct {
	tx *bolt.Tx
}

// WriteTxn is the single exclusive write transaction. Commit is the only
// durability point; any error from the caller's handler aborts the
// transaction without writing anything.
type WriteTxn struct {
	tx *bolt.Tx
}

// View runs fn against a fresh read snapshot.
func (s *Store) View(fn func(r *ReadTxn) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&ReadTxn{tx: tx})
	})
}

// Update runs fn inside the single write transaction; fn's error aborts the
// transaction, fn's success commits it.
func (s *Store) Update(fn func(w *WriteTxn) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&WriteTxn{tx: tx})
	})
}

// GetTxn returns a read view of the in-flight write transaction, so handlers
// can make uniqueness/existence checks against their own uncommitted writes.
func (w *WriteTxn) GetTxn() *ReadTxn {
	return &ReadTxn{tx: w.tx}
}

func (r *ReadTxn) Get(keyspace string, key []byte) ([]byte, bool) {
	b := r.tx.Bucket([]byte(keyspace))
	if b == nil {
		return nil, false
	}
	v := b.Get(key)
	if v == nil {
		return nil, false
	}
	// bbolt reuses the backing array across the transaction; copy for callers
	// that outlive it.
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Scan calls fn for every key in keyspace with the given prefix, in key
// order, until fn returns false or the prefix is exhausted.
func (r *ReadTxn) Scan(keyspace string, prefix []byte, fn func(key, value []byte) bool) error {
	b := r.tx.Bucket([]byte(keyspace))
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if !fn(k, v) {
			break
		}
	}
	return nil
}

// ForEach calls fn for every key/value pair in keyspace in key order.
func (r *ReadTxn) ForEach(keyspace string, fn func(key, value []byte) bool) error {
	return r.Scan(keyspace, nil, fn)
}

func (w *WriteTxn) Get(keyspace string, key []byte) ([]byte, bool) {
	return w.GetTxn().Get(keyspace, key)
}

func (w *WriteTxn) Put(keyspace string, key, value []byte) error {
	b := w.tx.Bucket([]byte(keyspace))
	if b == nil {
		return fmt.Errorf("recordstore: unknown keyspace %q", keyspace)
	}
	return b.Put(key, value)
}

func (w *WriteTxn) Delete(keyspace string, key []byte) error {
	b := w.tx.Bucket([]byte(keyspace))
	if b == nil {
		return fmt.Errorf("recordstore: unknown keyspace %q", keyspace)
	}
	return b.Delete(key)
}

// NextSequence returns a monotonically increasing bucket-local integer,
// used by GS to assign the next unused node index.
func (w *WriteTxn) NextSequence(keyspace string) (uint64, error) {
	b := w.tx.Bucket([]byte(keyspace))
	if b == nil {
		return 0, fmt.Errorf("recordstore: unknown keyspace %q", keyspace)
	}
	return b.NextSequence()
}

func hasPrefix(k, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
