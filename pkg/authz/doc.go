/*
Package authz is the AZ layer: a pure, read-only decision function over GS.
Given a principal ULID and a Context, it decides allow/deny without ever
opening a write transaction — grounded on the read-only shape of the
teacher's ReadOnlyInterceptor (pkg/api/interceptor.go), generalized from a
method-name allowlist to a graph permission walk (spec.md §4.2, §4.5).

Callers obtain the recordstore.ReadTxn to evaluate against only after any preceding
write in the same logical request has committed, so a resource just created
by the same request is visible to its own authorization check.
*/
package authz
