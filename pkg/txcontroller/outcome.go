package txcontroller

import (
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/types"
)

const ksTxOutcome = "tc_tx_outcome"

// Keyspaces lists the recordstore keyspaces the transaction controller owns.
func Keyspaces() []string {
	return []string{ksTxOutcome}
}

const (
	fieldOK    uint16 = 0
	fieldReply uint16 = 1
	fieldKind  uint16 = 2
	fieldMsg   uint16 = 3
)

// applyResult is what FSM.Apply returns, and what gets persisted to the
// tx_outcome keyspace so a replayed or re-delivered entry short-circuits to
// the same answer instead of re-running a handler that already failed
// terminally.
type applyResult struct {
	Reply []byte
	Err   error
}

func encodeOutcome(res applyResult) *recordstore.Record {
	rec := recordstore.NewRecord()
	if res.Err == nil {
		rec.PutBool(fieldOK, true)
		rec.PutBytes(fieldReply, res.Reply)
	} else {
		rec.PutBool(fieldOK, false)
		rec.PutString(fieldKind, string(arerr.KindOf(res.Err)))
		rec.PutString(fieldMsg, res.Err.Error())
	}
	return rec
}

func decodeOutcome(rec *recordstore.Record) applyResult {
	ok, _ := rec.GetBool(fieldOK)
	if ok {
		reply, _ := rec.GetBytes(fieldReply)
		return applyResult{Reply: reply}
	}
	kind, _ := rec.GetString(fieldKind)
	msg, _ := rec.GetString(fieldMsg)
	return applyResult{Err: arerrFromKind(arerr.Kind(kind), msg)}
}

func arerrFromKind(kind arerr.Kind, msg string) error {
	return arerr.Wrap(kind, nil, "%s", msg)
}

// recordOutcome persists res for eventID in its own write transaction, so it
// survives even when res.Err aborted the request's own transaction.
func recordOutcome(rs *recordstore.Store, eventID types.ID, res applyResult) error {
	rec := encodeOutcome(res)
	err := rs.Update(func(w *recordstore.WriteTxn) error {
		return w.Put(ksTxOutcome, eventID[:], rec.Encode())
	})
	if err != nil {
		return fmt.Errorf("txcontroller: record outcome for %s: %w", eventID.String(), err)
	}
	return nil
}

// lookupOutcome returns a previously recorded terminal outcome for eventID,
// if any.
func lookupOutcome(rs *recordstore.Store, eventID types.ID) (applyResult, bool) {
	var res applyResult
	var found bool
	_ = rs.View(func(r *recordstore.ReadTxn) error {
		raw, ok := r.Get(ksTxOutcome, eventID[:])
		if !ok {
			return nil
		}
		rec, err := recordstore.DecodeRecord(raw)
		if err != nil {
			return nil
		}
		res = decodeOutcome(rec)
		found = true
		return nil
	})
	return res, found
}
