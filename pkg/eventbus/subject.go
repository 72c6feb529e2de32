package eventbus

import (
	"fmt"
	"strings"

	"github.com/aruna-project/aruna-server/pkg/types"
)

// entitySubject is the per-entity subject spec.md §6 names: "user.<ulid>"
// for principal variants, "resource.<ulid>" for everything else.
func entitySubject(n *types.Node) string {
	if n.Variant == types.VariantUser || n.Variant == types.VariantServiceAccount {
		return fmt.Sprintf("user.%s", n.ID.String())
	}
	return fmt.Sprintf("resource.%s", n.ID.String())
}

// announcementSubject is the per-variant broadcast subject: every event on
// a node of a given variant also publishes here, so a consumer filtering on
// "announcement.*" sees every commit regardless of entity.
func announcementSubject(n *types.Node) string {
	return fmt.Sprintf("announcement.%s", n.Variant.String())
}

// realmSubject is the per-realm broadcast subject: published once per realm
// ancestor a node's hierarchy resolves to, so a consumer can watch
// "all.<realm-ulid>" for one realm without tracking every entity in it.
func realmSubject(realmID types.ID) string {
	return fmt.Sprintf("all.%s", realmID.String())
}

// subjectsFor computes every subject a message publishes under: the entity
// subject, the per-variant announcement subject, and one per-realm subject
// for each realm ancestor in hierarchies.
func subjectsFor(n *types.Node, realmAncestors []types.ID) []string {
	subjects := []string{entitySubject(n), announcementSubject(n)}
	for _, realmID := range realmAncestors {
		subjects = append(subjects, realmSubject(realmID))
	}
	return subjects
}

// matchSubject reports whether subject satisfies a consumer's filter
// pattern. A pattern ending in ".*" matches any subject sharing its prefix,
// at any depth after the dot; anything else requires an exact match.
func matchSubject(pattern, subject string) bool {
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(subject, prefix)
	}
	return pattern == subject
}

// anySubjectMatches reports whether any of subjects satisfies pattern.
func anySubjectMatches(pattern string, subjects []string) bool {
	for _, s := range subjects {
		if matchSubject(pattern, s) {
			return true
		}
	}
	return false
}
