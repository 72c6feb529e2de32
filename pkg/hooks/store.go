package hooks

import (
	"encoding/json"
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

const (
	ksHooks        = "he_hooks"
	ksHooksByScope = "he_hooks_by_scope"
	ksDedup        = "he_dedup"
)

// Keyspaces lists every recordstore keyspace the hook engine owns.
func Keyspaces() []string {
	return []string{ksHooks, ksHooksByScope, ksDedup}
}

func scopeKey(scope, hookID types.ID) []byte {
	k := make([]byte, 0, 32)
	k = append(k, scope[:]...)
	k = append(k, 0)
	k = append(k, hookID[:]...)
	return k
}

// putHook persists h and indexes it under its project scope, for scope-
// prefixed lookup during trigger matching.
func putHook(w *recordstore.WriteTxn, h types.Hook) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("hooks: encode hook %s: %w", h.ID.String(), err)
	}
	if err := w.Put(ksHooks, h.ID[:], data); err != nil {
		return fmt.Errorf("hooks: put hook %s: %w", h.ID.String(), err)
	}
	if err := w.Put(ksHooksByScope, scopeKey(h.ProjectScope, h.ID), h.ID[:]); err != nil {
		return fmt.Errorf("hooks: index hook %s by scope: %w", h.ID.String(), err)
	}
	return nil
}

// GetHook returns the hook registered under id.
func GetHook(r *recordstore.ReadTxn, id types.ID) (types.Hook, bool) {
	raw, ok := r.Get(ksHooks, id[:])
	if !ok {
		return types.Hook{}, false
	}
	var h types.Hook
	if err := json.Unmarshal(raw, &h); err != nil {
		return types.Hook{}, false
	}
	return h, true
}

// ListByScope returns every hook declared with project_scope == scope.
func ListByScope(r *recordstore.ReadTxn, scope types.ID) ([]types.Hook, error) {
	var out []types.Hook
	prefix := append(append([]byte(nil), scope[:]...), 0)
	err := r.Scan(ksHooksByScope, prefix, func(_, v []byte) bool {
		var id types.ID
		copy(id[:], v)
		if h, ok := GetHook(r, id); ok {
			out = append(out, h)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("hooks: list hooks by scope %s: %w", scope.String(), err)
	}
	return out, nil
}
