package txcontroller

import (
	"bytes"
	"io"
	"testing"
)

// fakeSnapshotSink is a minimal in-memory raft.SnapshotSink for testing
// FSM.Snapshot/Restore without a real raft.FileSnapshotStore.
type fakeSnapshotSink struct {
	t   *testing.T
	buf bytes.Buffer
}

func newFakeSnapshotSink(t *testing.T) *fakeSnapshotSink {
	return &fakeSnapshotSink{t: t}
}

func (s *fakeSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *fakeSnapshotSink) Close() error                { return nil }
func (s *fakeSnapshotSink) ID() string                  { return "test-snapshot" }
func (s *fakeSnapshotSink) Cancel() error               { return nil }

func (s *fakeSnapshotSink) reader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(s.buf.Bytes()))
}
