package eventbus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

const ksOverflow = "eb_overflow"

// LagError is recorded for operator alerting when a consumer's overflow
// queue is full and the oldest unacked message is dropped to make room for
// a newly committed one (spec.md §4.6's failure semantics).
type LagError struct {
	Consumer string
	Dropped  uint64 // the log index that was dropped
}

func (e *LagError) Error() string {
	return fmt.Sprintf("eventbus: consumer %q overflowed, dropped index %d", e.Consumer, e.Dropped)
}

func overflowKey(consumerName string, index uint64) []byte {
	k := make([]byte, len(consumerName)+1+8)
	copy(k, consumerName)
	k[len(consumerName)] = 0 // NUL separator: consumer names never contain it
	binary.BigEndian.PutUint64(k[len(consumerName)+1:], index)
	return k
}

func overflowPrefix(consumerName string) []byte {
	k := make([]byte, len(consumerName)+1)
	copy(k, consumerName)
	k[len(consumerName)] = 0
	return k
}

// enqueueOverflow durably queues msg for consumerName at log index, and —
// if doing so pushes the queue past capacity — drops the oldest queued
// entry and returns a *LagError describing the drop.
func enqueueOverflow(w *recordstore.WriteTxn, consumerName string, index uint64, msg types.EventMessage, capacity int) (*LagError, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("eventbus: encode overflow message: %w", err)
	}
	if err := w.Put(ksOverflow, overflowKey(consumerName, index), data); err != nil {
		return nil, fmt.Errorf("eventbus: enqueue overflow: %w", err)
	}

	var keys [][]byte
	_ = w.GetTxn().Scan(ksOverflow, overflowPrefix(consumerName), func(k, _ []byte) bool {
		cp := append([]byte(nil), k...)
		keys = append(keys, cp)
		return true
	})
	if capacity <= 0 || len(keys) <= capacity {
		return nil, nil
	}

	oldest := keys[0]
	droppedIdx := binary.BigEndian.Uint64(oldest[len(oldest)-8:])
	if err := w.Delete(ksOverflow, oldest); err != nil {
		return nil, fmt.Errorf("eventbus: drop oldest overflow entry: %w", err)
	}
	return &LagError{Consumer: consumerName, Dropped: droppedIdx}, nil
}

// peekOldestOverflow returns the lowest-index queued message for
// consumerName, if any.
func peekOldestOverflow(r *recordstore.ReadTxn, consumerName string) (uint64, types.EventMessage, bool, error) {
	var foundKey []byte
	var foundVal []byte
	err := r.Scan(ksOverflow, overflowPrefix(consumerName), func(k, v []byte) bool {
		foundKey = append([]byte(nil), k...)
		foundVal = append([]byte(nil), v...)
		return false
	})
	if err != nil {
		return 0, types.EventMessage{}, false, fmt.Errorf("eventbus: peek overflow: %w", err)
	}
	if foundKey == nil {
		return 0, types.EventMessage{}, false, nil
	}
	index := binary.BigEndian.Uint64(foundKey[len(foundKey)-8:])
	var msg types.EventMessage
	if err := json.Unmarshal(foundVal, &msg); err != nil {
		return 0, types.EventMessage{}, false, fmt.Errorf("eventbus: decode overflow message: %w", err)
	}
	return index, msg, true, nil
}

// ackOverflow removes a delivered-and-acknowledged entry from the queue.
func ackOverflow(w *recordstore.WriteTxn, consumerName string, index uint64) error {
	if err := w.Delete(ksOverflow, overflowKey(consumerName, index)); err != nil {
		return fmt.Errorf("eventbus: ack overflow: %w", err)
	}
	return nil
}
