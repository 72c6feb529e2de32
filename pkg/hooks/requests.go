package hooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txcontroller"
	"github.com/aruna-project/aruna-server/pkg/types"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

func init() {
	txcontroller.Register(kindCreateHook, func() txcontroller.WriteRequest { return &CreateHookRequest{} })
	txcontroller.Register(kindSetHookStatus, func() txcontroller.WriteRequest { return &SetHookStatusRequest{} })
	txcontroller.Register(kindInternalAction, func() txcontroller.WriteRequest { return &InternalActionRequest{} })
	txcontroller.Register(kindCallback, func() txcontroller.WriteRequest { return &CallbackRequest{} })
}

const (
	kindCreateHook     = "hooks.create_hook"
	kindSetHookStatus  = "hooks.set_hook_status"
	kindInternalAction = "hooks.internal_action"
	kindCallback       = "hooks.callback"
)

// CreateHookRequest registers a new Hook declaration. The hook's id is the
// committing transaction's event id, keeping hook creation deterministic
// across replay without needing its own entropy source.
type CreateHookRequest struct {
	Owner        types.ID          `json:"owner"`
	ProjectScope types.ID          `json:"project_scope"`
	Trigger      types.Trigger     `json:"trigger"`
	Filter       []types.FilterPredicate `json:"filter"`
	Action       types.HookAction  `json:"action"`
	Timeout      time.Duration     `json:"timeout"`
}

func (r *CreateHookRequest) Kind() string { return kindCreateHook }

func (r *CreateHookRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	if _, ok := gs.GetIdxFromULID(w.GetTxn(), r.ProjectScope); !ok {
		return nil, nil, "", arerr.NewNotFound("hooks: project scope %s does not exist", r.ProjectScope.String())
	}

	h := types.Hook{
		ID:           eventID,
		Owner:        r.Owner,
		ProjectScope: r.ProjectScope,
		Trigger:      r.Trigger,
		Filter:       r.Filter,
		Action:       r.Action,
		Timeout:      r.Timeout,
	}
	if err := putHook(w, h); err != nil {
		return nil, nil, "", err
	}

	reply, err := json.Marshal(map[string]string{"id": h.ID.String()})
	if err != nil {
		return nil, nil, "", fmt.Errorf("hooks: encode create-hook reply: %w", err)
	}
	return reply, nil, types.EventCreated, nil
}

// SetHookStatusRequest writes a HookStatus key/value onto the target node,
// logged as its own write request per spec.md §4.7 step 2: "through a new
// write request to TC (so the status mutation is itself logged)".
type SetHookStatusRequest struct {
	Target  types.ID      `json:"target"`
	HookID  types.ID      `json:"hook_id"`
	State   types.HookState `json:"state"`
	Trigger types.Trigger `json:"trigger"`
	Message string        `json:"message"`
}

func (r *SetHookStatusRequest) Kind() string { return kindSetHookStatus }

func (r *SetHookStatusRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	idx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Target)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("hooks: target %s does not exist", r.Target.String())
	}
	node, err := gs.GetNode(w.GetTxn(), idx)
	if err != nil {
		return nil, nil, "", err
	}

	status := types.HookStatus{HookID: r.HookID, State: r.State, Trigger: r.Trigger, Message: r.Message}
	encoded, err := json.Marshal(status)
	if err != nil {
		return nil, nil, "", fmt.Errorf("hooks: encode hook status: %w", err)
	}
	node.Labels = upsertLabel(node.Labels, types.KeyValue{
		Key:     r.HookID.String(),
		Value:   string(encoded),
		Variant: types.KeyValueVariantHookStatus,
	})
	if err := gs.PutNode(w, node); err != nil {
		return nil, nil, "", err
	}
	if err := ui.Project(w, node); err != nil {
		return nil, nil, "", err
	}
	return nil, []types.NodeIdx{idx}, types.EventUpdated, nil
}

// InternalActionRequest executes one HookAction's internal mutation
// (AddLabel, AddHook, CreateRelation) against target, on behalf of a firing
// hook.
type InternalActionRequest struct {
	Target types.ID         `json:"target"`
	Action types.HookAction `json:"action"`
}

func (r *InternalActionRequest) Kind() string { return kindInternalAction }

func (r *InternalActionRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	idx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Target)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("hooks: target %s does not exist", r.Target.String())
	}

	switch r.Action.Kind {
	case types.HookActionInternalAddLabel:
		node, err := gs.GetNode(w.GetTxn(), idx)
		if err != nil {
			return nil, nil, "", err
		}
		node.Labels = upsertLabel(node.Labels, types.KeyValue{
			Key: r.Action.LabelKey, Value: r.Action.LabelValue, Variant: types.KeyValueVariantLabel,
		})
		if err := gs.PutNode(w, node); err != nil {
			return nil, nil, "", err
		}
		if err := ui.Project(w, node); err != nil {
			return nil, nil, "", err
		}
		return nil, []types.NodeIdx{idx}, types.EventUpdated, nil

	case types.HookActionInternalAddHook:
		node, err := gs.GetNode(w.GetTxn(), idx)
		if err != nil {
			return nil, nil, "", err
		}
		node.Labels = upsertLabel(node.Labels, types.KeyValue{
			Key: r.Action.RelationTarget.String(), Value: r.Action.RelationTarget.String(), Variant: types.KeyValueVariantHookDeclared,
		})
		if err := gs.PutNode(w, node); err != nil {
			return nil, nil, "", err
		}
		if err := ui.Project(w, node); err != nil {
			return nil, nil, "", err
		}
		return nil, []types.NodeIdx{idx}, types.EventUpdated, nil

	case types.HookActionInternalCreateRelation:
		dstIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Action.RelationTarget)
		if !ok {
			return nil, nil, "", arerr.NewNotFound("hooks: relation target %s does not exist", r.Action.RelationTarget.String())
		}
		if err := gs.CreateRelation(w, idx, dstIdx, r.Action.RelationType); err != nil {
			return nil, nil, "", err
		}
		return nil, []types.NodeIdx{idx, dstIdx}, types.EventUpdated, nil

	default:
		return nil, nil, "", arerr.NewInvalid("hooks: action kind %q is not internal", r.Action.Kind)
	}
}

// CallbackRequest applies an external hook's HookCallback result: adding and
// removing labels on success, or recording an error message, per spec.md
// §4.7 step 3. Removing a static label is rejected.
type CallbackRequest struct {
	Target    types.ID          `json:"target"`
	HookID    types.ID          `json:"hook_id"`
	Trigger   types.Trigger     `json:"trigger"`
	Succeeded bool              `json:"succeeded"`
	AddKVs    []types.KeyValue  `json:"add_kvs,omitempty"`
	RemoveKVs []string          `json:"remove_kvs,omitempty"`
	ErrMsg    string            `json:"err_msg,omitempty"`
}

func (r *CallbackRequest) Kind() string { return kindCallback }

func (r *CallbackRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	idx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Target)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("hooks: target %s does not exist", r.Target.String())
	}
	node, err := gs.GetNode(w.GetTxn(), idx)
	if err != nil {
		return nil, nil, "", err
	}

	state := types.HookStateFinished
	message := ""
	if r.Succeeded {
		for _, key := range r.RemoveKVs {
			if isStaticLabel(node.Labels, key) {
				return nil, nil, "", arerr.NewInvalid("hooks: static_label_removal: %q is static and cannot be removed", key)
			}
		}
		for _, key := range r.RemoveKVs {
			node.Labels = removeLabel(node.Labels, key)
		}
		for _, kv := range r.AddKVs {
			node.Labels = upsertLabel(node.Labels, kv)
		}
	} else {
		state = types.HookStateError
		message = r.ErrMsg
	}

	status := types.HookStatus{HookID: r.HookID, State: state, Trigger: r.Trigger, Message: message}
	encoded, err := json.Marshal(status)
	if err != nil {
		return nil, nil, "", fmt.Errorf("hooks: encode hook status: %w", err)
	}
	node.Labels = upsertLabel(node.Labels, types.KeyValue{
		Key: r.HookID.String(), Value: string(encoded), Variant: types.KeyValueVariantHookStatus,
	})

	if err := gs.PutNode(w, node); err != nil {
		return nil, nil, "", err
	}
	if err := ui.Project(w, node); err != nil {
		return nil, nil, "", err
	}
	return nil, []types.NodeIdx{idx}, types.EventUpdated, nil
}

func upsertLabel(labels []types.KeyValue, kv types.KeyValue) []types.KeyValue {
	for i, existing := range labels {
		if existing.Key == kv.Key && existing.Variant == kv.Variant {
			labels[i] = kv
			return labels
		}
	}
	return append(labels, kv)
}

func removeLabel(labels []types.KeyValue, key string) []types.KeyValue {
	out := labels[:0]
	for _, kv := range labels {
		if kv.Key == key && kv.Variant == types.KeyValueVariantLabel {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isStaticLabel(labels []types.KeyValue, key string) bool {
	for _, kv := range labels {
		if kv.Key == key && kv.Variant == types.KeyValueVariantStaticLabel {
			return true
		}
	}
	return false
}
