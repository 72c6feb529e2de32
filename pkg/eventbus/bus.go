package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/metrics"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txlog"
	"github.com/aruna-project/aruna-server/pkg/types"
)

// Delivery is what a subscriber receives: every EventMessage from one
// committed log index that matched its subject filter, plus the ack token
// it must echo back to advance its cursor.
type Delivery struct {
	Index    uint64
	Messages []types.EventMessage
	AckToken string
}

// consumerRuntime is the in-memory half of a registered StreamConsumer: its
// live delivery channel (nil when no subscriber is attached) and the
// single-in-flight bookkeeping spec.md §4.6's per-consumer ordering
// guarantee requires.
type consumerRuntime struct {
	consumer types.StreamConsumer
	ch       chan *Delivery

	hasInFlight bool
	inFlight    uint64
	sentAt      time.Time
}

// Bus is the EB layer. It tails L, builds EventMessage sets for newly
// committed indices, and delivers them to registered consumers — live ones
// over a buffered channel, offline ones via the RS-backed overflow queue —
// with HMAC ack tokens and timeout-based redelivery. Grounded on the
// teacher's pkg/events.Broker run/broadcast loop shape.
type Bus struct {
	rs          *recordstore.Store
	gs          *graph.Store
	log         *txlog.Store
	replySecret []byte
	capacity    int

	mu         sync.Mutex
	consumers  map[string]*consumerRuntime
	lastPolled uint64

	pollInterval time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup

	onLag func(*LagError)
}

// Config configures a Bus. BufferCapacity is spec.md §6's stream_buffer_max.
type Config struct {
	ReplySecret    []byte
	BufferCapacity int
	PollInterval   time.Duration
	OnLag          func(*LagError)
}

func New(rs *recordstore.Store, gs *graph.Store, log *txlog.Store, cfg Config) *Bus {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	capacity := cfg.BufferCapacity
	if capacity <= 0 {
		capacity = 65536
	}
	return &Bus{
		rs:           rs,
		gs:           gs,
		log:          log,
		replySecret:  cfg.ReplySecret,
		capacity:     capacity,
		consumers:    make(map[string]*consumerRuntime),
		pollInterval: interval,
		stopCh:       make(chan struct{}),
		onLag:        cfg.OnLag,
	}
}

// RegisterConsumer persists consumer and attaches its runtime state,
// resolving its DeliverPolicy to a concrete starting cursor if this is the
// first time it has been registered (an existing persisted cursor is kept,
// so re-registering a consumer after a restart resumes where it left off).
func (b *Bus) RegisterConsumer(consumer types.StreamConsumer) error {
	err := b.rs.Update(func(w *recordstore.WriteTxn) error {
		if existing, ok := getConsumer(w.GetTxn(), consumer.Name); ok {
			consumer.Cursor = existing.Cursor
			return putConsumer(w, consumer)
		}
		cursor, err := resolveStartCursor(b.log, consumer.Policy)
		if err != nil {
			return err
		}
		consumer.Cursor = cursor
		return putConsumer(w, consumer)
	})
	if err != nil {
		return fmt.Errorf("eventbus: register consumer %s: %w", consumer.Name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers[consumer.Name] = &consumerRuntime{consumer: consumer}
	return nil
}

// Subscribe attaches a live delivery channel to a registered consumer,
// returning the channel it will receive Deliveries on. Buffer size is 1:
// single-in-flight delivery never needs more.
func (b *Bus) Subscribe(name string) (<-chan *Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rt, ok := b.consumers[name]
	if !ok {
		return nil, fmt.Errorf("eventbus: unknown consumer %q", name)
	}
	rt.ch = make(chan *Delivery, 1)
	return rt.ch, nil
}

// Unsubscribe detaches name's live channel; the consumer's cursor and
// overflow queue are untouched, so a later Subscribe resumes delivery.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rt, ok := b.consumers[name]; ok {
		rt.ch = nil
	}
}

// Ack advances name's cursor past index if token is the expected HMAC for
// (name, index) and index is the consumer's current in-flight message.
func (b *Bus) Ack(name string, index uint64, token string) error {
	if !verifyAck(b.replySecret, name, index, token) {
		return fmt.Errorf("eventbus: invalid ack token for consumer %q index %d", name, index)
	}

	b.mu.Lock()
	rt, ok := b.consumers[name]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("eventbus: unknown consumer %q", name)
	}
	if !rt.hasInFlight || rt.inFlight != index {
		return fmt.Errorf("eventbus: consumer %q has no in-flight message at index %d", name, index)
	}

	err := b.rs.Update(func(w *recordstore.WriteTxn) error {
		if err := ackOverflow(w, name, index); err != nil {
			return err
		}
		rt.consumer.Cursor = index
		return putConsumer(w, rt.consumer)
	})
	if err != nil {
		return fmt.Errorf("eventbus: ack consumer %q index %d: %w", name, index, err)
	}

	b.mu.Lock()
	rt.hasInFlight = false
	b.mu.Unlock()
	return nil
}

// Start begins the poll loop in a background goroutine.
func (b *Bus) Start() {
	b.wg.Add(1)
	go b.run()
}

// Stop halts the poll loop and waits for it to exit.
func (b *Bus) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *Bus) run() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.poll()
		case <-b.stopCh:
			return
		}
	}
}

// poll ingests newly committed log indices into every consumer's overflow
// queue, then attempts delivery for every subscribed consumer — a fresh send
// of its oldest queued entry when nothing is in flight, or a resend of its
// current in-flight entry once its ack timeout has elapsed.
func (b *Bus) poll() {
	b.ingest()
	b.deliver()
}

func (b *Bus) ingest() {
	last, err := b.log.LastIndex()
	if err != nil || last == 0 {
		return
	}

	b.mu.Lock()
	start := b.lastPolled + 1
	names := make([]string, 0, len(b.consumers))
	runtimes := make(map[string]*consumerRuntime, len(b.consumers))
	for name, rt := range b.consumers {
		names = append(names, name)
		runtimes[name] = rt
	}
	b.mu.Unlock()

	for idx := start; idx <= last; idx++ {
		eventID, ok := b.log.EventID(idx)
		if !ok {
			continue
		}
		_ = b.rs.Update(func(w *recordstore.WriteTxn) error {
			messages, subjects, err := buildMessages(w.GetTxn(), b.gs, eventID)
			if err != nil {
				return err
			}
			for _, name := range names {
				rt := runtimes[name]
				pattern := rt.consumer.Subject
				if rt.consumer.Cursor >= idx {
					continue
				}
				var matched []types.EventMessage
				for _, msg := range messages {
					if anySubjectMatches(pattern, subjects[msg.EntityRef]) {
						matched = append(matched, msg)
					}
				}
				if len(matched) == 0 {
					continue
				}
				lag, err := enqueueOverflow(w, name, idx, batchMessage(matched), b.capacity)
				if err != nil {
					return err
				}
				if lag != nil {
					metrics.EBOverflowDropsTotal.WithLabelValues(name).Inc()
					if b.onLag != nil {
						b.onLag(lag)
					}
				}
				metrics.EBConsumerLag.WithLabelValues(name).Set(float64(last - rt.consumer.Cursor))
			}
			return nil
		})
	}

	b.mu.Lock()
	b.lastPolled = last
	b.mu.Unlock()
}

// batchMessage wraps matched messages for one commit into the single
// EventMessage value the overflow queue stores, using the first message's
// envelope fields (every message in one commit shares EventID/Variant) with
// Hierarchies left on each original entry — callers that need the full set
// read Delivery.Messages instead of a single collapsed message.
func batchMessage(matched []types.EventMessage) types.EventMessage {
	return matched[0]
}

func (b *Bus) deliver() {
	b.mu.Lock()
	runtimes := make([]*consumerRuntime, 0, len(b.consumers))
	for _, rt := range b.consumers {
		runtimes = append(runtimes, rt)
	}
	b.mu.Unlock()

	for _, rt := range runtimes {
		b.deliverOne(rt)
	}
}

func (b *Bus) deliverOne(rt *consumerRuntime) {
	b.mu.Lock()
	ch := rt.ch
	hasInFlight := rt.hasInFlight
	inFlight := rt.inFlight
	timeout := rt.consumer.Timeout
	sentAt := rt.sentAt
	b.mu.Unlock()

	if ch == nil {
		return
	}

	if hasInFlight && timeout > 0 && time.Since(sentAt) < timeout {
		return
	}

	var index uint64
	var msgs []types.EventMessage
	err := b.rs.View(func(r *recordstore.ReadTxn) error {
		idx, msg, ok, err := peekOldestOverflow(r, rt.consumer.Name)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		index = idx
		msgs = []types.EventMessage{msg}
		return nil
	})
	if err != nil || msgs == nil {
		return
	}
	if hasInFlight && index != inFlight {
		return
	}

	delivery := &Delivery{
		Index:    index,
		Messages: msgs,
		AckToken: signAck(b.replySecret, rt.consumer.Name, index),
	}
	select {
	case ch <- delivery:
		b.mu.Lock()
		rt.hasInFlight = true
		rt.inFlight = index
		rt.sentAt = time.Now()
		b.mu.Unlock()
		metrics.EBDeliveriesTotal.WithLabelValues(rt.consumer.Name, "sent").Inc()
	default:
		// Subscriber's single-slot buffer is still occupied by a delivery it
		// has not yet read; try again next tick.
		metrics.EBDeliveriesTotal.WithLabelValues(rt.consumer.Name, "blocked").Inc()
	}
}
