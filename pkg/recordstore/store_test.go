package recordstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), []string{"nodes", "idx"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutGetRoundtrip(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(func(w *WriteTxn) error {
		return w.Put("nodes", []byte("k1"), []byte("v1"))
	})
	require.NoError(t, err)

	err = s.View(func(r *ReadTxn) error {
		v, ok := r.Get("nodes", []byte("k1"))
		assert.True(t, ok)
		assert.Equal(t, "v1", string(v))
		return nil
	})
	require.NoError(t, err)
}

func TestStoreWriteTxnSeesOwnUncommittedWrites(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(func(w *WriteTxn) error {
		require.NoError(t, w.Put("nodes", []byte("k1"), []byte("v1")))
		v, ok := w.GetTxn().Get("nodes", []byte("k1"))
		assert.True(t, ok)
		assert.Equal(t, "v1", string(v))
		return nil
	})
	require.NoError(t, err)
}

func TestStoreAbortedWriteIsNotVisible(t *testing.T) {
	s := openTestStore(t)

	_ = s.Update(func(w *WriteTxn) error {
		_ = w.Put("nodes", []byte("k1"), []byte("v1"))
		return assertErr
	})

	err := s.View(func(r *ReadTxn) error {
		_, ok := r.Get("nodes", []byte("k1"))
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreScanRespectsPrefix(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(func(w *WriteTxn) error {
		require.NoError(t, w.Put("nodes", []byte("a/1"), []byte("1")))
		require.NoError(t, w.Put("nodes", []byte("a/2"), []byte("2")))
		require.NoError(t, w.Put("nodes", []byte("b/1"), []byte("3")))
		return nil
	})
	require.NoError(t, err)

	var got []string
	err = s.View(func(r *ReadTxn) error {
		return r.Scan("nodes", []byte("a/"), func(k, v []byte) bool {
			got = append(got, string(v))
			return true
		})
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, got)
}

func TestStoreNextSequenceIncrements(t *testing.T) {
	s := openTestStore(t)

	var first, second uint64
	err := s.Update(func(w *WriteTxn) error {
		var err error
		first, err = w.NextSequence("idx")
		if err != nil {
			return err
		}
		second, err = w.NextSequence("idx")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestBackupRestoreRoundtrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Update(func(w *WriteTxn) error {
		return w.Put("nodes", []byte("k1"), []byte("v1"))
	}))

	var buf bytes.Buffer
	require.NoError(t, s.Backup(&buf))

	s2, err := Open(t.TempDir(), []string{"nodes", "idx"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })
	require.NoError(t, s2.Restore(bytes.NewReader(buf.Bytes())))

	err = s2.View(func(r *ReadTxn) error {
		v, ok := r.Get("nodes", []byte("k1"))
		assert.True(t, ok)
		assert.Equal(t, "v1", string(v))
		return nil
	})
	require.NoError(t, err)
}

var assertErr = errTest{}

type errTest struct{}

func (errTest) Error() string { return "forced abort" }
