/*
Package universe is the UI layer: a filterable projection of a whitelisted
subset of node fields, kept in its own recordstore keyspace alongside GS's
authoritative node records. There is no teacher equivalent — the reference
orchestrator only ever lists nodes unfiltered — so this package is built in
the teacher's idiom from scratch: a plain recursive-descent parser over
text/scanner tokens, an Expr tree, and a linear scan-and-evaluate query path.

Every write that creates or mutates a node must call Index.Project in the
same transaction as the authoritative GS write, so UI and GS never diverge.
Index.Filtered is also how write transactions enforce uniqueness constraints
(query with an equality filter, require an empty result).
*/
package universe
