package oidc

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// defaultJWKCacheDuration mirrors the teacher's jwkDefaultDuration.
const defaultJWKCacheDuration = time.Hour

// PrincipalType distinguishes the kind of principal a token's info.user_type
// claim identifies, per spec.md §6's token format.
type PrincipalType uint8

const (
	PrincipalUser PrincipalType = iota
	PrincipalServiceAccount
)

// Issuer is one entry of the boot-time issuer table (spec.md §6:
// `issuers: [{name, jwks_url|static_keys, audiences, type}]`). Exactly one
// of JWKSURL or StaticKeys is set: JWKSURL is fetched and cached through a
// JWKProvider, StaticKeys is used as-is (air-gapped deployments, tests).
type Issuer struct {
	Name       string
	JWKSURL    string
	StaticKeys jwk.Set
	Audiences  []string
	Type       PrincipalType

	CacheDuration time.Duration
}

func (iss Issuer) cacheDuration() time.Duration {
	if iss.CacheDuration <= 0 {
		return defaultJWKCacheDuration
	}
	return iss.CacheDuration
}
