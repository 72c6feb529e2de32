package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txlog"
	"github.com/aruna-project/aruna-server/pkg/types"
)

const ksConsumers = "eb_consumers"

// Keyspaces lists the recordstore keyspaces the event bus owns.
func Keyspaces() []string {
	return []string{ksConsumers, ksOverflow}
}

func putConsumer(w *recordstore.WriteTxn, c types.StreamConsumer) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("eventbus: encode consumer %s: %w", c.Name, err)
	}
	if err := w.Put(ksConsumers, []byte(c.Name), data); err != nil {
		return fmt.Errorf("eventbus: put consumer %s: %w", c.Name, err)
	}
	return nil
}

func getConsumer(r *recordstore.ReadTxn, name string) (types.StreamConsumer, bool) {
	raw, ok := r.Get(ksConsumers, []byte(name))
	if !ok {
		return types.StreamConsumer{}, false
	}
	var c types.StreamConsumer
	if err := json.Unmarshal(raw, &c); err != nil {
		return types.StreamConsumer{}, false
	}
	return c, true
}

// resolveStartCursor turns a consumer's DeliverPolicy into a concrete
// starting log index (the last index the consumer is considered to have
// already seen): DeliverAll resolves to 0, DeliverFromSequence(s) to s-1
// (so delivery starts at s),
// DeliverFromTimestamp(t) to the index immediately before the first event
// whose ULID-derived timestamp is >= t.
func resolveStartCursor(log *txlog.Store, policy types.DeliverPolicy) (uint64, error) {
	switch policy.Kind {
	case types.DeliverAll:
		return 0, nil
	case types.DeliverFromSequence:
		if policy.Sequence == 0 {
			return 0, nil
		}
		return policy.Sequence - 1, nil
	case types.DeliverFromTimestamp:
		first, err := log.FirstIndex()
		if err != nil {
			return 0, fmt.Errorf("eventbus: first index: %w", err)
		}
		last, err := log.LastIndex()
		if err != nil {
			return 0, fmt.Errorf("eventbus: last index: %w", err)
		}
		target := ulid.Timestamp(policy.Timestamp)
		for idx := first; idx <= last && last != 0; idx++ {
			eventID, ok := log.EventID(idx)
			if !ok {
				continue
			}
			if eventID.Time() >= target {
				if idx == 0 {
					return 0, nil
				}
				return idx - 1, nil
			}
		}
		return last, nil
	default:
		return 0, fmt.Errorf("eventbus: unknown delivery policy kind %q", policy.Kind)
	}
}
