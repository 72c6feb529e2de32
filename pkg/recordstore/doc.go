/*
Package recordstore is the RS layer: an embedded ordered key-value engine
built on go.etcd.io/bbolt, generalized from the teacher's per-entity bucket
CRUD (pkg/storage/boltdb.go in the reference orchestrator) into named
keyspaces with multi-reader/single-writer transactions and field-addressed
binary records.

	Store.View(fn)            → snapshot-isolated read
	Store.Update(fn)          → the single exclusive write transaction
	WriteTxn.GetTxn()         → a read view of the in-flight write, for
	                            uniqueness/existence checks against the
	                            writer's own uncommitted mutations

Any keyspace error aborts the enclosing transaction; no partial writes
become visible. Callers above RS (pkg/graph, pkg/universe) never touch
*bolt.Tx directly.
*/
package recordstore
