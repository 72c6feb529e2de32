package txcontroller

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/metrics"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txlog"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

// Controller is the TC layer: the raft.Raft instance plus the stores its FSM
// drives. Grounded on the teacher's Manager — specifically its Bootstrap
// (transport/snapshot-store/log-store/stable-store/raft.NewRaft wiring) and
// Apply (marshal → raft.Apply → check future.Error()/future.Response()).
type Controller struct {
	raft *raft.Raft
	fsm  *FSM
	rs   *recordstore.Store
	gs   *graph.Store
	ui   *universe.Index
	log  *txlog.Store

	applyTimeout time.Duration
}

// Config is the subset of raft.Config the caller chooses plus where TC keeps
// its on-disk state.
type Config struct {
	NodeID       string
	BindAddr     string
	DataDir      string
	ApplyTimeout time.Duration
}

// Bootstrap opens every store TC owns, wires a single-node raft.Raft
// cluster (the only bootstrap path this package implements — joining an
// existing cluster is an external-collaborator concern, see SPEC_FULL.md),
// and returns a ready Controller.
func Bootstrap(cfg Config, rs *recordstore.Store, gs *graph.Store, ui *universe.Index) (*Controller, error) {
	logStore, err := txlog.Open(cfg.DataDir, rs)
	if err != nil {
		return nil, fmt.Errorf("txcontroller: open log: %w", err)
	}

	fsm := NewFSM(rs, gs, ui, logStore)

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("txcontroller: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("txcontroller: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(filepath.Join(cfg.DataDir, "snapshots"), 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("txcontroller: create snapshot store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, fsm, logStore, logStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("txcontroller: create raft: %w", err)
	}

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}},
	}
	future := r.BootstrapCluster(configuration)
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("txcontroller: bootstrap cluster: %w", err)
	}

	timeout := cfg.ApplyTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Controller{
		raft:         r,
		fsm:          fsm,
		rs:           rs,
		gs:           gs,
		ui:           ui,
		log:          logStore,
		applyTimeout: timeout,
	}, nil
}

// Submit encodes req, appends it through raft, and waits for the local FSM
// to apply it, returning the handler's reply bytes or its terminal error.
func (c *Controller) Submit(req WriteRequest) ([]byte, error) {
	timer := metrics.NewTimer()
	reply, err := c.submit(req)
	timer.ObserveDuration(metrics.TxApplyDuration)
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	metrics.TxCommitsTotal.WithLabelValues(req.Kind(), outcome).Inc()
	return reply, err
}

func (c *Controller) submit(req WriteRequest) ([]byte, error) {
	data, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	future := c.raft.Apply(data, c.applyTimeout)
	if err := future.Error(); err != nil {
		return nil, arerr.NewUnavailable("txcontroller: submit %s: %v", req.Kind(), err)
	}

	resp := future.Response()
	result, ok := resp.(applyResult)
	if !ok {
		return nil, arerr.NewInternal("txcontroller: unexpected apply response type %T", resp)
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Reply, nil
}

// IsLeader reports whether this node currently holds raft leadership and
// mirrors the answer into the aruna_tx_is_leader gauge. metrics.Collector and
// rlserver.Server.WatchLeader read it.
func (c *Controller) IsLeader() bool {
	leader := c.raft.State() == raft.Leader
	if leader {
		metrics.TxIsLeader.Set(1)
	} else {
		metrics.TxIsLeader.Set(0)
	}
	return leader
}

// Shutdown gracefully stops the raft instance and closes TC's own stores.
func (c *Controller) Shutdown() error {
	if err := c.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("txcontroller: shutdown raft: %w", err)
	}
	return c.log.Close()
}
