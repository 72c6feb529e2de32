package hooks

import (
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// dedupKey identifies one hook invocation attempt, per spec.md §4.7:
// "(hook_id, object_id, trigger, event_id)".
func dedupKey(hookID, objectID types.ID, trigger types.Trigger, eventID types.ID) []byte {
	k := make([]byte, 0, 16*3+len(trigger))
	k = append(k, hookID[:]...)
	k = append(k, objectID[:]...)
	k = append(k, []byte(trigger)...)
	k = append(k, eventID[:]...)
	return k
}

// terminalInvocation reports whether (hookID, objectID, trigger, eventID)
// already reached a terminal HookState, so the worker can skip re-invoking
// a hook it has already finished or failed — dedup per spec.md §4.7.
func terminalInvocation(r *recordstore.ReadTxn, hookID, objectID types.ID, trigger types.Trigger, eventID types.ID) (bool, error) {
	raw, ok := r.Get(ksDedup, dedupKey(hookID, objectID, trigger, eventID))
	if !ok {
		return false, nil
	}
	state := types.HookState(raw)
	return state == types.HookStateFinished || state == types.HookStateError, nil
}

// recordInvocation stamps the dedup entry with state, idempotently
// overwriting any prior non-terminal entry for the same key.
func recordInvocation(w *recordstore.WriteTxn, hookID, objectID types.ID, trigger types.Trigger, eventID types.ID, state types.HookState) error {
	if err := w.Put(ksDedup, dedupKey(hookID, objectID, trigger, eventID), []byte(state)); err != nil {
		return fmt.Errorf("hooks: record invocation state: %w", err)
	}
	return nil
}
