/*
Package graph is the GS layer: a typed, versioned property graph of nodes
and directed edges, built directly on pkg/recordstore keyspaces. Grounded on
the teacher's pkg/storage CRUD-interface shape, generalized to one
polymorphic node type carrying a variant tag instead of per-entity-typed
buckets.

Nodes are addressed externally by ULID and internally by a compact u32
NodeIdx; edges are (source, type, target) triples stored in both directions
so traversal never requires a full scan. Three DFS algorithms answer the
graph questions the rest of the system needs: UpstreamAncestors (a node's
containment chain), PermissionWalk (the strongest permission a principal can
reach on a resource), and SubresourceEnumeration (everything a container
transitively holds).
*/
package graph
