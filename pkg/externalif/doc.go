/*
Package externalif names the external collaborators spec.md §1 and §7 scope
out of this service: data-proxy presigning and Meilisearch projection. Only
the interfaces are declared here, for pkg/hooks and a future search-indexing
consumer to depend on — no implementation is provided, matching
SPEC_FULL.md's "external collaborators" list.
*/
package externalif
