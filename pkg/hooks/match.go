package hooks

import (
	"fmt"
	"regexp"

	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// triggersForVariant approximates spec.md §4.7's "event's computed trigger
// set" from the single outcome byte spec.md §6's event record carries:
// EventVariant alone cannot distinguish a plain label write from a hook
// being declared or a hook status changing, so every update-shaped trigger
// is offered to the filter pass, which prunes false matches via each hook's
// own NameMatches/KeyValueMatches predicates. Deletes never fire hooks.
func triggersForVariant(v types.EventVariant) []types.Trigger {
	switch v {
	case types.EventCreated:
		return []types.Trigger{types.TriggerResourceCreated}
	case types.EventUpdated:
		return []types.Trigger{
			types.TriggerLabelAdded,
			types.TriggerHookAdded,
			types.TriggerStaticLabelAdded,
			types.TriggerHookStatusChanged,
		}
	case types.EventAvailable:
		return []types.Trigger{types.TriggerObjectFinished}
	default:
		return nil
	}
}

// matchingScopes returns node's own ULID (if it is itself a project) plus
// every ancestor project's ULID, the set spec.md §4.7 calls `P*`.
func matchingScopes(r *recordstore.ReadTxn, gs *graph.Store, node *types.Node) ([]types.ID, error) {
	var scopes []types.ID
	if node.Variant == types.VariantProject {
		scopes = append(scopes, node.ID)
	}
	ancestors, err := gs.UpstreamAncestors(r, node.Idx)
	if err != nil {
		return nil, fmt.Errorf("hooks: upstream ancestors of %d: %w", node.Idx, err)
	}
	for _, a := range ancestors {
		aNode, err := gs.GetNode(r, a)
		if err != nil {
			return nil, fmt.Errorf("hooks: load ancestor %d: %w", a, err)
		}
		if aNode.Variant == types.VariantProject {
			scopes = append(scopes, aNode.ID)
		}
	}
	return scopes, nil
}

// matchesFilter reports whether node satisfies any disjunct of preds. A hook
// with no predicates fires unconditionally on every event of its trigger.
func matchesFilter(preds []types.FilterPredicate, node *types.Node) bool {
	if len(preds) == 0 {
		return true
	}
	for _, p := range preds {
		if p.UseKeyValue {
			if matchesAnyLabel(p, node.Labels) {
				return true
			}
			continue
		}
		if p.NameMatches == "" {
			continue
		}
		if ok, _ := regexp.MatchString(p.NameMatches, node.Name); ok {
			return true
		}
	}
	return false
}

func matchesAnyLabel(p types.FilterPredicate, labels []types.KeyValue) bool {
	for _, kv := range labels {
		if p.KeyValueVariant != "" && kv.Variant != p.KeyValueVariant {
			continue
		}
		if p.KeyMatches != "" {
			if ok, _ := regexp.MatchString(p.KeyMatches, kv.Key); !ok {
				continue
			}
		}
		if p.ValueMatches != "" {
			if ok, _ := regexp.MatchString(p.ValueMatches, kv.Value); !ok {
				continue
			}
		}
		return true
	}
	return false
}

// matchHooks resolves every hook that fires for a committed event on node,
// per spec.md §4.7's Matching algorithm.
func matchHooks(r *recordstore.ReadTxn, gs *graph.Store, node *types.Node, variant types.EventVariant) ([]types.Hook, []types.Trigger, error) {
	triggers := triggersForVariant(variant)
	if len(triggers) == 0 {
		return nil, nil, nil
	}

	scopes, err := matchingScopes(r, gs, node)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[types.ID]bool)
	var matched []types.Hook
	var firedTriggers []types.Trigger
	for _, scope := range scopes {
		candidates, err := ListByScope(r, scope)
		if err != nil {
			return nil, nil, err
		}
		for _, h := range candidates {
			if seen[h.ID] {
				continue
			}
			if !containsTrigger(triggers, h.Trigger) {
				continue
			}
			if !matchesFilter(h.Filter, node) {
				continue
			}
			seen[h.ID] = true
			matched = append(matched, h)
			firedTriggers = append(firedTriggers, h.Trigger)
		}
	}
	return matched, firedTriggers, nil
}

func containsTrigger(triggers []types.Trigger, want types.Trigger) bool {
	for _, t := range triggers {
		if t == want {
			return true
		}
	}
	return false
}
