package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aruna-project/aruna-server/pkg/alog"
	"github.com/aruna-project/aruna-server/pkg/eventbus"
	"github.com/aruna-project/aruna-server/pkg/externalif"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/metrics"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txcontroller"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// Submitter is the subset of txcontroller.Controller the hook engine needs:
// submit a write request through TC and wait for its terminal outcome.
// HookStatus mutations and internal hook actions both go through this, per
// spec.md §4.7's "through a new write request to TC".
type Submitter interface {
	Submit(req txcontroller.WriteRequest) ([]byte, error)
}

// hookJob is spec.md §4.7's HookMessage: one hook invocation to run against
// one object, for one trigger, on one committed event.
type hookJob struct {
	Hook     types.Hook
	ObjectID types.ID
	Trigger  types.Trigger
	EventID  types.ID
}

// Config configures an Engine.
type Config struct {
	ConsumerName   string
	WorkerCount    int
	DefaultTimeout time.Duration
	AckTimeout     time.Duration
	Signer         externalif.Presigner
}

// Engine is the HE layer: it subscribes to EB, matches committed events
// against declared hooks, and drains matched invocations through a bounded
// worker pool. Grounded on the teacher's pkg/scheduler.Scheduler
// (ticker-driven reconciliation loop, structured logging per cycle) and
// original_source/src/hooks/hook_handler.rs's channel-consumption shape,
// translated from a single tokio task into a fixed-size Go worker pool.
type Engine struct {
	rs       *recordstore.Store
	gs       *graph.Store
	submit   Submitter
	bus      *eventbus.Bus
	consumer string
	jobs     chan hookJob
	signer   externalif.Presigner

	workerN   int
	defaultTO time.Duration
	ackTO     time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs an Engine. It does not start consuming until Start is
// called.
func New(rs *recordstore.Store, gs *graph.Store, submit Submitter, bus *eventbus.Bus, cfg Config) *Engine {
	workerN := cfg.WorkerCount
	if workerN <= 0 {
		workerN = 8
	}
	defaultTO := cfg.DefaultTimeout
	if defaultTO <= 0 {
		defaultTO = 30 * time.Second
	}
	ackTO := cfg.AckTimeout
	if ackTO <= 0 {
		ackTO = 30 * time.Second
	}
	name := cfg.ConsumerName
	if name == "" {
		name = "hooks-engine"
	}

	return &Engine{
		rs:        rs,
		gs:        gs,
		submit:    submit,
		bus:       bus,
		consumer:  name,
		jobs:      make(chan hookJob, 256),
		signer:    cfg.Signer,
		workerN:   workerN,
		defaultTO: defaultTO,
		ackTO:     ackTO,
		stopCh:    make(chan struct{}),
	}
}

// Start registers the engine's durable consumer against every committed
// event (subject "announcement.*" catches every variant, per spec.md §6's
// stream-subject list) and starts its worker pool.
func (e *Engine) Start() error {
	consumer := types.StreamConsumer{
		ID:      ulid.Make(),
		Name:    e.consumer,
		Subject: "announcement.*",
		Policy:  types.DeliverPolicy{Kind: types.DeliverAll},
		Timeout: e.ackTO,
	}
	if err := e.bus.RegisterConsumer(consumer); err != nil {
		return fmt.Errorf("hooks: register engine consumer: %w", err)
	}
	ch, err := e.bus.Subscribe(e.consumer)
	if err != nil {
		return fmt.Errorf("hooks: subscribe engine consumer: %w", err)
	}

	for i := 0; i < e.workerN; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	e.wg.Add(1)
	go e.dispatch(ch)
	return nil
}

// Stop halts dispatch and drains the worker pool without starting new
// external requests (spec.md §5's shutdown rule); in-flight HTTP requests
// are allowed to finish within their own timeout.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.bus.Unsubscribe(e.consumer)
	e.wg.Wait()
}

func (e *Engine) dispatch(ch <-chan *eventbus.Delivery) {
	defer e.wg.Done()
	for {
		select {
		case delivery, ok := <-ch:
			if !ok {
				return
			}
			e.handleDelivery(delivery)
		case <-e.stopCh:
			return
		}
	}
}

// handleDelivery resolves every matching hook for delivery's messages,
// enqueues one hookJob per match, and acks once every job for this delivery
// has been handed to the worker pool — HE's own dedup keyspace, not EB
// redelivery, is what makes a crash mid-invocation recoverable.
func (e *Engine) handleDelivery(delivery *eventbus.Delivery) {
	var jobs []hookJob
	_ = e.rs.View(func(r *recordstore.ReadTxn) error {
		for _, msg := range delivery.Messages {
			idx, ok := e.gs.GetIdxFromULID(r, msg.EntityRef)
			if !ok {
				continue
			}
			node, err := e.gs.GetNode(r, idx)
			if err != nil {
				continue
			}
			matched, triggers, err := matchHooks(r, e.gs, node, msg.Variant)
			if err != nil {
				continue
			}
			for i, h := range matched {
				jobs = append(jobs, hookJob{Hook: h, ObjectID: node.ID, Trigger: triggers[i], EventID: msg.EventID})
			}
		}
		return nil
	})

	for _, job := range jobs {
		select {
		case e.jobs <- job:
		case <-e.stopCh:
			return
		}
	}

	if err := e.bus.Ack(e.consumer, delivery.Index, delivery.AckToken); err != nil {
		alog.WithComponent("hooks").Error().Err(err).Uint64("index", delivery.Index).Msg("failed to ack delivery")
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case job := <-e.jobs:
			e.runJob(job)
		case <-e.stopCh:
			return
		}
	}
}

// QueueDepth reports the number of hook jobs buffered ahead of the worker
// pool, for aruna_hooks_queue_depth.
func (e *Engine) QueueDepth() int {
	return len(e.jobs)
}

func (e *Engine) runJob(job hookJob) {
	logger := alog.WithHookID(job.Hook.ID.String())
	timer := metrics.NewTimer()

	var terminal bool
	_ = e.rs.View(func(r *recordstore.ReadTxn) error {
		t, err := terminalInvocation(r, job.Hook.ID, job.ObjectID, job.Trigger, job.EventID)
		if err == nil {
			terminal = t
		}
		return nil
	})
	if terminal {
		return
	}

	e.markState(job, types.HookStateRunning, "")

	var finalState types.HookState
	var message string

	if job.Hook.Action.Kind == types.HookActionExternalHTTP {
		node, err := e.loadNode(job.ObjectID)
		if err != nil {
			finalState, message = types.HookStateError, err.Error()
		} else {
			timeout := job.Hook.Timeout
			if timeout <= 0 {
				timeout = e.defaultTO
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			status, callErr := callExternal(ctx, httpClientWithTimeout(timeout), job.Hook.Action, job.Hook.ID, node, e.signer)
			cancel()
			switch {
			case callErr != nil:
				finalState, message = types.HookStateError, callErr.Error()
			case status >= 400:
				finalState, message = types.HookStateError, fmt.Sprintf("external hook returned status %d", status)
			default:
				finalState = types.HookStateFinished
			}
		}
	} else {
		_, err := e.submit.Submit(&InternalActionRequest{Target: job.ObjectID, Action: job.Hook.Action})
		if err != nil {
			finalState, message = types.HookStateError, err.Error()
		} else {
			finalState = types.HookStateFinished
		}
	}

	e.markState(job, finalState, message)
	_ = e.rs.Update(func(w *recordstore.WriteTxn) error {
		return recordInvocation(w, job.Hook.ID, job.ObjectID, job.Trigger, job.EventID, finalState)
	})

	timer.ObserveDuration(metrics.HEExecutionDuration)
	metrics.HEExecutionsTotal.WithLabelValues(string(finalState)).Inc()

	if finalState == types.HookStateError {
		logger.Warn().Str("message", message).Msg("hook invocation failed")
	}
}

func (e *Engine) markState(job hookJob, state types.HookState, message string) {
	_, err := e.submit.Submit(&SetHookStatusRequest{
		Target:  job.ObjectID,
		HookID:  job.Hook.ID,
		State:   state,
		Trigger: job.Trigger,
		Message: message,
	})
	if err != nil {
		alog.WithComponent("hooks").Error().Err(err).Msg("failed to record hook status")
	}
}

func (e *Engine) loadNode(id types.ID) (*types.Node, error) {
	var node *types.Node
	err := e.rs.View(func(r *recordstore.ReadTxn) error {
		idx, ok := e.gs.GetIdxFromULID(r, id)
		if !ok {
			return fmt.Errorf("hooks: node %s does not exist", id.String())
		}
		n, err := e.gs.GetNode(r, idx)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	return node, err
}

// Callback applies an external hook's HookCallback result.
func (e *Engine) Callback(req *CallbackRequest) ([]byte, error) {
	return e.submit.Submit(req)
}
