package eventbus

import (
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// buildMessages resolves the committed event eventID into one EventMessage
// per affected node and the subjects each publishes under, per spec.md §4.6's data
// path: read the affected-idx set TC recorded, look each up in GS, walk
// upstream to find realm ancestors for the per-realm broadcast subject.
func buildMessages(r *recordstore.ReadTxn, gs *graph.Store, eventID types.ID) ([]types.EventMessage, map[types.ID][]string, error) {
	affected, variant, ok := gs.GetEvent(r, eventID)
	if !ok {
		return nil, nil, fmt.Errorf("eventbus: event %s has no registered affected set", eventID.String())
	}

	messages := make([]types.EventMessage, 0, len(affected))
	subjects := make(map[types.ID][]string, len(affected))

	for _, idx := range affected {
		node, err := gs.GetNode(r, idx)
		if err != nil {
			return nil, nil, fmt.Errorf("eventbus: load affected node %d: %w", idx, err)
		}

		ancestors, err := gs.UpstreamAncestors(r, idx)
		if err != nil {
			return nil, nil, fmt.Errorf("eventbus: upstream ancestors of %d: %w", idx, err)
		}

		hierarchy := make([]types.ID, 0, len(ancestors))
		var realmAncestors []types.ID
		for _, a := range ancestors {
			aID, ok := gs.GetULIDFromIdx(r, a)
			if !ok {
				continue
			}
			hierarchy = append(hierarchy, aID)

			aNode, err := gs.GetNode(r, a)
			if err != nil {
				return nil, nil, fmt.Errorf("eventbus: load ancestor %d: %w", a, err)
			}
			if aNode.Variant == types.VariantRealm {
				realmAncestors = append(realmAncestors, aID)
			}
		}

		msg := types.EventMessage{
			EventID:     eventID,
			EntityRef:   node.ID,
			Variant:     variant,
			Hierarchies: hierarchy,
		}
		messages = append(messages, msg)
		subjects[node.ID] = subjectsFor(node, realmAncestors)
	}

	return messages, subjects, nil
}
