package authz

import (
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/metrics"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

// Authorizer evaluates a Context against GS. It holds no per-request state;
// every call takes the caller's own read transaction.
type Authorizer struct {
	gs *graph.Store
	ui *universe.Index
}

func New(gs *graph.Store, ui *universe.Index) *Authorizer {
	return &Authorizer{gs: gs, ui: ui}
}

// isRegisteredPrincipal reports whether node is a variant that can act as a
// caller (a user or a service account — groups and realms never authenticate).
func isRegisteredPrincipal(n *types.Node) bool {
	return n.Variant == types.VariantUser || n.Variant == types.VariantServiceAccount
}

// Authorize decides whether principal satisfies ctx, reading exclusively
// through r. A nil/zero principal (unauthenticated caller) is only ever
// allowed by a Public context.
func (a *Authorizer) Authorize(r *recordstore.ReadTxn, principal *types.ID, ctx Context) error {
	timer := metrics.NewTimer()
	err := a.authorize(r, principal, ctx)
	timer.ObserveDuration(metrics.AZDecisionDuration)
	if err != nil {
		metrics.AZDecisionsTotal.WithLabelValues("deny").Inc()
	} else {
		metrics.AZDecisionsTotal.WithLabelValues("allow").Inc()
	}
	return err
}

func (a *Authorizer) authorize(r *recordstore.ReadTxn, principal *types.ID, ctx Context) error {
	if ctx.kind == KindPublic {
		return nil
	}
	if principal == nil {
		return arerr.NewUnauthorized("authz: no principal on non-public request")
	}

	principalIdx, ok := a.gs.GetIdxFromULID(r, *principal)
	if !ok {
		return arerr.NewForbidden("authz: unregistered principal %s", principal.String())
	}
	principalNode, err := a.gs.GetNode(r, principalIdx)
	if err != nil {
		return fmt.Errorf("authz: load principal %s: %w", principal.String(), err)
	}
	if !isRegisteredPrincipal(principalNode) {
		return arerr.NewForbidden("authz: principal %s is not a user or service account", principal.String())
	}

	switch ctx.kind {
	case KindUserOnly, KindEmpty:
		return nil

	case KindGlobalAdmin:
		return a.authorizeGlobalAdmin(r, principalNode, principalIdx)

	case KindPermission:
		return a.authorizePermission(r, principalIdx, ctx)

	default:
		return arerr.NewInternal("authz: unknown context kind %d", ctx.kind)
	}
}

func (a *Authorizer) authorizePermission(r *recordstore.ReadTxn, principalIdx types.NodeIdx, ctx Context) error {
	sourceIdx, ok := a.gs.GetIdxFromULID(r, ctx.source)
	if !ok {
		return arerr.NewNotFound("authz: permission source %s not found", ctx.source.String())
	}
	level, err := a.gs.PermissionWalk(r, principalIdx, sourceIdx)
	if err != nil {
		return fmt.Errorf("authz: permission walk: %w", err)
	}
	if level < ctx.minLevel {
		return arerr.NewForbidden("authz: permission level %d at %s below required %d", level, ctx.source.String(), ctx.minLevel)
	}
	return nil
}

// authorizeGlobalAdmin allows a user with global_admin set, or a principal
// holding admin permission on a realm flagged as an admin realm. Realm
// admin-flag membership is small and changes rarely, so it is resolved by
// scanning UI for every realm rather than maintaining a dedicated index.
func (a *Authorizer) authorizeGlobalAdmin(r *recordstore.ReadTxn, principalNode *types.Node, principalIdx types.NodeIdx) error {
	if principalNode.Variant == types.VariantUser && principalNode.GlobalAdmin {
		return nil
	}

	realmIdxs, err := a.ui.Filtered(r, universe.FilterVariant(types.VariantRealm))
	if err != nil {
		return fmt.Errorf("authz: list realms: %w", err)
	}
	for _, realmIdx := range realmIdxs {
		realm, err := a.gs.GetNode(r, realmIdx)
		if err != nil {
			return fmt.Errorf("authz: load realm %d: %w", realmIdx, err)
		}
		if !realm.IsAdminRealm {
			continue
		}
		level, err := a.gs.PermissionWalk(r, principalIdx, realmIdx)
		if err != nil {
			return fmt.Errorf("authz: permission walk on admin realm %d: %w", realmIdx, err)
		}
		if level >= types.PermissionLevel(types.RelPermissionAdmin) {
			return nil
		}
	}
	return arerr.NewForbidden("authz: principal is not a global admin")
}
