package eventbus

import (
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txlog"
	"github.com/aruna-project/aruna-server/pkg/types"
)

func openTestBus(t *testing.T) (*recordstore.Store, *graph.Store, *txlog.Store, *Bus) {
	t.Helper()
	keyspaces := append(append(graph.Keyspaces(), Keyspaces()...), txlog.Keyspaces()...)
	rs, err := recordstore.Open(t.TempDir(), keyspaces)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	gs := graph.New(rs)

	log, err := txlog.Open(t.TempDir(), rs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	bus := New(rs, gs, log, Config{
		ReplySecret:  []byte("test-secret"),
		PollInterval: 10 * time.Millisecond,
	})
	return rs, gs, log, bus
}

func newNode(variant types.Variant, name string) *types.Node {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.Node{
		ID:           ulid.Make(),
		Variant:      variant,
		Name:         name,
		CreatedAt:    now,
		LastModified: now,
		Visibility:   types.VisibilityPrivate,
		Status:       types.ObjectStatusAvailable,
	}
}

// commit creates a project node under realm, appends its log entry at
// logIndex, and registers the GS event, returning the project's NodeIdx and
// the eventID the log stamped on that entry.
func commit(t *testing.T, rs *recordstore.Store, gs *graph.Store, log *txlog.Store, realmIdx types.NodeIdx, project *types.Node, logIndex uint64) (types.NodeIdx, types.ID) {
	t.Helper()
	var idx types.NodeIdx
	require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		idx, err = gs.CreateNode(w, project)
		if err != nil {
			return err
		}
		return gs.CreateRelation(w, idx, realmIdx, types.RelBelongsTo)
	}))

	require.NoError(t, log.StoreLog(&raft.Log{
		Index: logIndex,
		Term:  1,
		Type:  raft.LogCommand,
		Data:  []byte("noop"),
	}))
	eventID, ok := log.EventID(logIndex)
	require.True(t, ok)

	require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
		return gs.RegisterEvent(w, eventID, []types.NodeIdx{idx}, types.EventCreated)
	}))
	return idx, eventID
}

func TestBusDeliversToSubscribedConsumer(t *testing.T) {
	rs, gs, log, bus := openTestBus(t)

	var realmIdx types.NodeIdx
	realm := newNode(types.VariantRealm, "test-realm")
	require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		realmIdx, err = gs.CreateNode(w, realm)
		return err
	}))

	consumer := types.StreamConsumer{
		ID:      ulid.Make(),
		Name:    "watcher",
		Subject: "announcement.*",
		Policy:  types.DeliverPolicy{Kind: types.DeliverAll},
		Timeout: 50 * time.Millisecond,
	}
	require.NoError(t, bus.RegisterConsumer(consumer))
	ch, err := bus.Subscribe("watcher")
	require.NoError(t, err)

	project := newNode(types.VariantProject, "demo")
	_, eventID := commit(t, rs, gs, log, realmIdx, project, 1)

	bus.poll()

	select {
	case delivery := <-ch:
		require.Len(t, delivery.Messages, 1)
		assert.Equal(t, eventID, delivery.Messages[0].EventID)
		assert.Equal(t, project.ID, delivery.Messages[0].EntityRef)
		assert.Equal(t, types.EventCreated, delivery.Messages[0].Variant)

		require.NoError(t, bus.Ack("watcher", delivery.Index, delivery.AckToken))
	case <-time.After(time.Second):
		t.Fatal("expected a delivery")
	}
}

func TestBusRejectsBadAckToken(t *testing.T) {
	rs, gs, log, bus := openTestBus(t)

	var realmIdx types.NodeIdx
	realm := newNode(types.VariantRealm, "test-realm")
	require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		realmIdx, err = gs.CreateNode(w, realm)
		return err
	}))

	consumer := types.StreamConsumer{
		ID:      ulid.Make(),
		Name:    "watcher",
		Subject: "announcement.*",
		Policy:  types.DeliverPolicy{Kind: types.DeliverAll},
		Timeout: 50 * time.Millisecond,
	}
	require.NoError(t, bus.RegisterConsumer(consumer))
	ch, err := bus.Subscribe("watcher")
	require.NoError(t, err)

	project := newNode(types.VariantProject, "demo")
	commit(t, rs, gs, log, realmIdx, project, 1)
	bus.poll()

	delivery := <-ch
	err = bus.Ack("watcher", delivery.Index, "not-the-right-token")
	assert.Error(t, err)
}

func TestBusQueuesForOfflineConsumer(t *testing.T) {
	rs, gs, log, bus := openTestBus(t)

	var realmIdx types.NodeIdx
	realm := newNode(types.VariantRealm, "test-realm")
	require.NoError(t, rs.Update(func(w *recordstore.WriteTxn) error {
		var err error
		realmIdx, err = gs.CreateNode(w, realm)
		return err
	}))

	consumer := types.StreamConsumer{
		ID:      ulid.Make(),
		Name:    "offline",
		Subject: "announcement.*",
		Policy:  types.DeliverPolicy{Kind: types.DeliverAll},
		Timeout: 50 * time.Millisecond,
	}
	require.NoError(t, bus.RegisterConsumer(consumer))

	project := newNode(types.VariantProject, "demo")
	commit(t, rs, gs, log, realmIdx, project, 1)
	bus.poll()

	require.NoError(t, rs.View(func(r *recordstore.ReadTxn) error {
		idx, _, ok, err := peekOldestOverflow(r, "offline")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(1), idx)
		return nil
	}))

	ch, err := bus.Subscribe("offline")
	require.NoError(t, err)
	bus.poll()

	select {
	case delivery := <-ch:
		require.Len(t, delivery.Messages, 1)
		assert.Equal(t, project.ID, delivery.Messages[0].EntityRef)
	case <-time.After(time.Second):
		t.Fatal("expected a delivery once subscribed")
	}
}

func TestAnySubjectMatches(t *testing.T) {
	assert.True(t, anySubjectMatches("announcement.*", []string{"resource.x", "announcement.project"}))
	assert.False(t, anySubjectMatches("announcement.*", []string{"resource.x"}))
	assert.True(t, anySubjectMatches("resource.abc", []string{"resource.abc"}))
}
