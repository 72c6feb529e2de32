/*
Package oidc implements the token handler spec.md §4.5/§6 names as an
external collaborator: JWKS fetch, caching, and JWT signature/claim
verification, yielding the `(principalULID, tokenIdx)` pair AZ resolves a
caller from. Not part of the core per spec.md §7's Non-goals, but SPEC_FULL.md
gives it a concrete home so the core has a real token handler to call rather
than a stubbed interface.

Grounded on LerianStudio-midaz's common/net/http/withJWT.go: JWKProvider's
URI + cache.Cache + sync.Once pattern, jwk.Fetch against the issuer's JWKS
endpoint, and jwt.Parse with a kid-keyed keyfunc — adapted from a fiber
middleware into a plain Verify function, and generalized from a single
issuer to the issuer table spec.md §6 configures at boot.
*/
package oidc
