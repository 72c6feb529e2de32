package oidc

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/oklog/ulid/v2"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// tokenInfo is the `info` claim spec.md §6 names: `(user_type: u8, token_idx: u16)`.
type tokenInfo struct {
	UserType  uint8  `json:"user_type"`
	TokenIdx  uint16 `json:"token_idx"`
}

// claims is the JWT claim set spec.md §6 specifies, embedding the registered
// claims (iss, sub, exp, aud) golang-jwt already parses and validates.
type claims struct {
	jwt.RegisteredClaims
	Info  *tokenInfo `json:"info,omitempty"`
	Scope string     `json:"scope,omitempty"`
}

// Principal is what Verify resolves a bearer token to: the caller's ULID,
// the index of the token itself (for revocation/audit bookkeeping), the
// principal type, and the token's scope string if any.
type Principal struct {
	ID       types.ID
	TokenIdx uint16
	Type     PrincipalType
	Scope    string
}

// Verifier holds the boot-configured issuer table and one JWKProvider per
// issuer that uses a JWKS URL.
type Verifier struct {
	issuers   map[string]Issuer
	providers map[string]*JWKProvider
}

// New builds a Verifier from the boot-time issuer table. Issuer names must
// be unique; duplicates are rejected since the token's `iss` claim selects
// exactly one issuer by name.
func New(issuers []Issuer) (*Verifier, error) {
	v := &Verifier{
		issuers:   make(map[string]Issuer, len(issuers)),
		providers: make(map[string]*JWKProvider),
	}
	for _, iss := range issuers {
		if _, dup := v.issuers[iss.Name]; dup {
			return nil, fmt.Errorf("oidc: duplicate issuer name %q", iss.Name)
		}
		v.issuers[iss.Name] = iss
		if iss.JWKSURL != "" {
			v.providers[iss.Name] = &JWKProvider{URI: iss.JWKSURL, CacheDuration: iss.cacheDuration()}
		}
	}
	return v, nil
}

// Verify validates tokenString's signature and claims against the issuer
// named in its `iss` claim, and returns the principal it identifies. It
// never opens a GS transaction — AZ is responsible for resolving the
// returned ULID to a registered node.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	var resolvedIssuer Issuer

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		c, ok := token.Claims.(*claims)
		if !ok {
			return nil, fmt.Errorf("oidc: unexpected claims type %T", token.Claims)
		}
		iss, ok := v.issuers[c.Issuer]
		if !ok {
			return nil, fmt.Errorf("oidc: unknown issuer %q", c.Issuer)
		}
		resolvedIssuer = iss

		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("oidc: unexpected signing method %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("oidc: kid header not found")
		}

		keySet, err := v.keySetFor(ctx, iss)
		if err != nil {
			return nil, err
		}
		key, ok := keySet.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("oidc: key %q not found in issuer %q's JWKS", kid, iss.Name)
		}
		var raw interface{}
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("oidc: extract raw key: %w", err)
		}
		return raw, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, arerr.NewUnauthorized("oidc: verify token: %v", err)
	}
	if !parsed.Valid {
		return nil, arerr.NewUnauthorized("oidc: token invalid")
	}

	c := parsed.Claims.(*claims)
	if err := checkAudience(c, resolvedIssuer); err != nil {
		return nil, err
	}

	principalID, err := ulid.Parse(c.Subject)
	if err != nil {
		return nil, arerr.NewUnauthorized("oidc: sub claim %q is not a valid ulid: %v", c.Subject, err)
	}

	principal := &Principal{ID: principalID, Type: resolvedIssuer.Type, Scope: c.Scope}
	if c.Info != nil {
		principal.TokenIdx = c.Info.TokenIdx
	}
	return principal, nil
}

func (v *Verifier) keySetFor(ctx context.Context, iss Issuer) (jwk.Set, error) {
	if iss.StaticKeys != nil {
		return iss.StaticKeys, nil
	}
	provider, ok := v.providers[iss.Name]
	if !ok {
		return nil, fmt.Errorf("oidc: issuer %q has neither static_keys nor jwks_url configured", iss.Name)
	}
	return provider.Fetch(ctx)
}

func checkAudience(c *claims, iss Issuer) error {
	if len(iss.Audiences) == 0 {
		return nil
	}
	for _, want := range iss.Audiences {
		for _, got := range c.Audience {
			if want == got {
				return nil
			}
		}
	}
	return arerr.NewUnauthorized("oidc: token audience %v does not match issuer %q's configured audiences", c.Audience, iss.Name)
}
