package requestlayer

import (
	"context"

	"github.com/aruna-project/aruna-server/pkg/authz"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/oidc"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txcontroller"
	"github.com/aruna-project/aruna-server/pkg/types"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

// Submitter is the subset of txcontroller.Controller RL needs to commit a
// write.
type Submitter interface {
	Submit(req txcontroller.WriteRequest) ([]byte, error)
}

// Layer ties the read stack (GS/UI/AZ) and the write stack (TC) behind one
// principal-resolving, permission-gated surface. It holds no per-request
// state.
type Layer struct {
	rs       *recordstore.Store
	gs       *graph.Store
	ui       *universe.Index
	az       *authz.Authorizer
	verifier *oidc.Verifier
	submit   Submitter
}

func New(rs *recordstore.Store, gs *graph.Store, ui *universe.Index, az *authz.Authorizer, verifier *oidc.Verifier, submit Submitter) *Layer {
	return &Layer{rs: rs, gs: gs, ui: ui, az: az, verifier: verifier, submit: submit}
}

// Authenticate resolves bearerToken to a principal ULID. An empty token
// resolves to no principal (the unauthenticated caller of a Public
// context); the verifier itself rejects a present-but-invalid token.
func (l *Layer) Authenticate(ctx context.Context, bearerToken string) (*types.ID, error) {
	if bearerToken == "" {
		return nil, nil
	}
	principal, err := l.verifier.Verify(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	return &principal.ID, nil
}

// Read runs fn against a fresh RS snapshot after authorizing principal
// against authCtx, per spec.md §4.5's "reads are AZ-gated, writes are
// AZ-gated then logged" split.
func (l *Layer) Read(principal *types.ID, authCtx authz.Context, fn func(r *recordstore.ReadTxn) error) error {
	return l.rs.View(func(r *recordstore.ReadTxn) error {
		if err := l.az.Authorize(r, principal, authCtx); err != nil {
			return err
		}
		return fn(r)
	})
}

// Submit authorizes principal against authCtx on the current snapshot and,
// if permitted, hands req to TC. Re-authorizing inside the write
// transaction itself is unnecessary — TC's own Execute re-validates
// existence/uniqueness preconditions, and AZ's snapshot-after-preceding-write
// rule only requires the check to be against a snapshot no older than the
// one the immediately preceding write of this caller observed, which the
// current view always satisfies.
func (l *Layer) Submit(principal *types.ID, authCtx authz.Context, req txcontroller.WriteRequest) ([]byte, error) {
	var authErr error
	_ = l.rs.View(func(r *recordstore.ReadTxn) error {
		authErr = l.az.Authorize(r, principal, authCtx)
		return nil
	})
	if authErr != nil {
		return nil, authErr
	}
	return l.submit.Submit(req)
}
