/*
Package txlog is the L layer: a single append-only log file of u32-length-
prefixed, crc32c-checked frames, each carrying a ULID event id and a
serialized raft.Log. It implements raft.LogStore directly against this file
and raft.StableStore against a small pkg/recordstore keyspace, so the
transaction controller's raft.Raft runs on a log whose on-disk shape matches
spec.md §4.4 exactly rather than on github.com/hashicorp/raft-boltdb (see
DESIGN.md for why that dependency was dropped).

The in-memory index-to-offset map is rebuilt by a single forward scan of the
file at Open; a dangling partial frame at the tail (a crash mid-fsync) is
truncated away rather than treated as corruption.
*/
package txlog
