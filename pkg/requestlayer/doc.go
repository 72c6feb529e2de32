/*
Package requestlayer is the RL layer: it resolves a caller's principal from
a bearer token, gates every read through AZ, and submits every write as a
registered txcontroller.WriteRequest. Per spec.md §1, protobuf/gRPC framing
is the external collaborator RL sits behind, not something this package
reimplements — the dispatch pattern is grounded on the teacher's
pkg/api/server.go (ensureLeader → validate → convert → call manager →
convert back), generalized from a hard leader-check and proto conversion to
an AZ permission check and plain Go request/response structs.

Write requests for the core graph operations (realm/group/project/object
lifecycle, generic permission grants, delete) are registered here rather
than in pkg/txcontroller itself, following the same per-package registration
pattern pkg/hooks already established for its own write requests.
*/
package requestlayer
