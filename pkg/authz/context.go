package authz

import "github.com/aruna-project/aruna-server/pkg/types"

// Kind discriminates the five Context variants spec.md §4.5 names.
type Kind int

const (
	KindUserOnly Kind = iota
	KindPermission
	KindGlobalAdmin
	KindPublic
	KindEmpty
)

// Context is the authorization requirement a request declares before RL
// hands it to TC (writes) or serves it directly from GS/UI (reads).
type Context struct {
	kind     Kind
	source   types.ID
	minLevel int
}

// UserOnly requires an authenticated, registered principal — no permission
// check beyond that.
func UserOnly() Context { return Context{kind: KindUserOnly} }

// Permission requires at least minLevel (one of types.PermissionLevel's
// totally-ordered values) at source by any permission path.
func Permission(source types.ID, minLevel int) Context {
	return Context{kind: KindPermission, source: source, minLevel: minLevel}
}

// GlobalAdmin requires the caller be a user with the global_admin field set,
// or hold admin permission on some realm marked as an admin realm.
func GlobalAdmin() Context { return Context{kind: KindGlobalAdmin} }

// Public always allows, authenticated or not.
func Public() Context { return Context{kind: KindPublic} }

// Empty requires only an active, registered principal — narrower checks,
// if any, are applied by the caller afterward (used by streaming endpoints
// that re-check per message).
func Empty() Context { return Context{kind: KindEmpty} }
