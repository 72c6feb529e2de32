// Package txcontroller is the TC layer: the raft.FSM driving writes into
// GS/UI, and the submission pipeline write requests go through on their way
// into the log. Grounded on the teacher's pkg/manager (WarrenFSM.Apply's
// string-keyed Command.Op switch, generalized here to a registered
// WriteRequest interface, and Manager.Apply's raft.Apply/future pattern).
package txcontroller

import (
	"encoding/json"
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

// WriteRequest is one registered kind of state change TC can apply. Every
// request the request layer accepts for writing implements this, replacing
// the teacher's string-switched Command.Op with a typed dispatch surface.
type WriteRequest interface {
	// Kind returns this request's registry key, used to select the decoder
	// on the replay/apply path.
	Kind() string

	// Execute validates preconditions against w's view (re-checking
	// existence/uniqueness, since state may have advanced between AZ's
	// authorization and commit; it carries no principal, so permission is
	// not re-checked), mutates GS/UI, and returns the reply bytes the caller
	// receives, every node index the commit touched (for GS.RegisterEvent
	// and EB fan-out), and the event's outcome variant (spec.md §6's event
	// record `outcome` byte). Handlers must be deterministic given
	// (eventID, GS/UI state) since replay re-executes them verbatim.
	Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) (reply []byte, affected []types.NodeIdx, variant types.EventVariant, err error)
}

// Decoder constructs a zero-value WriteRequest of a registered kind, ready
// to be populated by json.Unmarshal.
type Decoder func() WriteRequest

var registry = map[string]Decoder{}

// Register adds kind to the registry. Called from each write request type's
// init(), mirroring how the teacher's fsm.go hard-codes its op names (here,
// spread across each request's own file instead of one giant switch).
func Register(kind string, dec Decoder) {
	registry[kind] = dec
}

// envelope is the wire format stored in each log frame's payload: a kind tag
// plus the request's own JSON encoding, exactly as the teacher's
// Command{Op, Data} pairs a string op with a json.RawMessage.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeRequest(req WriteRequest) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("txcontroller: encode request: %w", err)
	}
	env := envelope{Kind: req.Kind(), Data: data}
	return json.Marshal(env)
}

func decodeRequest(raw []byte) (WriteRequest, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("txcontroller: decode envelope: %w", err)
	}
	dec, ok := registry[env.Kind]
	if !ok {
		return nil, arerr.NewInvalid("txcontroller: unregistered write request kind %q", env.Kind)
	}
	req := dec()
	if err := json.Unmarshal(env.Data, req); err != nil {
		return nil, fmt.Errorf("txcontroller: decode request body for %q: %w", env.Kind, err)
	}
	return req, nil
}
