package agent

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nstehr/creep/creep-core/ipc"
	"github.com/nstehr/creep/creep-core/model"
	"github.com/nstehr/creep/creep-core/rules"
	"github.com/nstehr/creep/creep-core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, conn *ipc.Connection, opts Options) *Agent {
	t.Helper()
	engine, err := rules.NewEngine(rules.DefaultRules())
	require.NoError(t, err)
	return New(conn, NewRegistry(), engine, opts)
}

func envelope(t *testing.T, msgType string, data any) ipc.Envelope {
	t.Helper()
	env, err := ipc.NewEnvelope(msgType, data)
	require.NoError(t, err)
	return env
}

func decodeAck(t *testing.T, env *ipc.Envelope) ipc.AckMessage {
	t.Helper()
	require.NotNil(t, env)
	require.Equal(t, ipc.TypeAck, env.Type)
	var ack ipc.AckMessage
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	return ack
}

// terrainWithWall returns plain terrain codes with a wall at (x, y).
func terrainWithWall(t *testing.T, x, y int) []int {
	t.Helper()
	codes := make([]int, model.RoomArea)
	i, err := model.ToIndex(x, y)
	require.NoError(t, err)
	codes[i] = int(model.TerrainMaskWall)
	return codes
}

func sendRoomState(t *testing.T, a *Agent, rs model.RoomState) ipc.AckMessage {
	t.Helper()
	resp, err := a.HandleRoomState(context.Background(), envelope(t, ipc.TypeRoomState, rs))
	require.NoError(t, err)
	return decodeAck(t, resp)
}

func sendTick(t *testing.T, a *Agent, tick, tickLimit int) ipc.AckMessage {
	t.Helper()
	ts := model.TickState{Tick: tick, CPU: model.CPU{Bucket: 10000, TickLimit: tickLimit}}
	resp, err := a.HandleTick(context.Background(), envelope(t, ipc.TypeTick, ts))
	require.NoError(t, err)
	return decodeAck(t, resp)
}

func TestHandleHello(t *testing.T) {
	a := newTestAgent(t, nil, Options{})
	resp, err := a.HandleHello(context.Background(), envelope(t, ipc.TypeHello, ipc.HelloMessage{Player: "alice", Shard: "shard1"}))
	require.NoError(t, err)
	assert.Equal(t, ipc.StatusOK, decodeAck(t, resp).Status)
	assert.Equal(t, "alice", a.Player)
	assert.Equal(t, "shard1", a.Shard)
}

func TestHandleRoomStatePublishesSnapshot(t *testing.T) {
	a := newTestAgent(t, nil, Options{})

	ack := sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 100, Terrain: terrainWithWall(t, 10, 20)})
	assert.Equal(t, ipc.StatusOK, ack.Status)
	assert.Equal(t, "W1N1", ack.Room)

	snap, ok := a.Rooms.Get("W1N1")
	require.True(t, ok)
	assert.Equal(t, 100, snap.Tick())
	assert.False(t, snap.Walkable(model.MustCoord(10, 20)))
	assert.Equal(t, model.RoomArea-1, snap.Terrain().WalkableCount())
}

func TestHandleRoomStateRejectsBadTerrain(t *testing.T) {
	tests := []struct {
		name    string
		terrain []int
		wantErr string
	}{
		{"short buffer", make([]int, model.RoomArea-1), "length mismatch"},
		{"long buffer", make([]int, model.RoomArea+1), "length mismatch"},
		{"unknown code", func() []int {
			codes := make([]int, model.RoomArea)
			codes[7] = 16
			return codes
		}(), "invalid terrain code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t, nil, Options{})
			// An earlier good snapshot must survive the bad update untouched.
			require.Equal(t, ipc.StatusOK, sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 1, Terrain: terrainWithWall(t, 0, 0)}).Status)

			ack := sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 2, Terrain: tt.terrain})
			assert.Equal(t, ipc.StatusResendTerrain, ack.Status)
			assert.Contains(t, ack.Error, tt.wantErr)

			snap, _ := a.Rooms.Get("W1N1")
			assert.Equal(t, 1, snap.Tick())
			assert.True(t, snap.Terrain().IsWall(model.MustCoord(0, 0)))
		})
	}
}

func TestHandleRoomStateReusesTerrain(t *testing.T) {
	a := newTestAgent(t, nil, Options{})
	require.Equal(t, ipc.StatusOK, sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 5, Terrain: terrainWithWall(t, 3, 3)}).Status)
	first, _ := a.Rooms.Get("W1N1")

	ack := sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 6})
	assert.Equal(t, ipc.StatusOK, ack.Status)

	second, _ := a.Rooms.Get("W1N1")
	assert.Equal(t, 6, second.Tick())
	assert.Same(t, first.Terrain(), second.Terrain())
	assert.Equal(t, 5, first.Tick(), "earlier snapshot must not change")
}

func TestHandleRoomStateWithoutTerrainAsksForIt(t *testing.T) {
	a := newTestAgent(t, nil, Options{})
	ack := sendRoomState(t, a, model.RoomState{Room: "E3S3", Tick: 1})
	assert.Equal(t, ipc.StatusResendTerrain, ack.Status)
	assert.Equal(t, 0, a.Rooms.Len())
}

func TestHandleRoomStateStaleTick(t *testing.T) {
	a := newTestAgent(t, nil, Options{})
	require.Equal(t, ipc.StatusOK, sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 10, Terrain: terrainWithWall(t, 1, 1)}).Status)

	assert.Equal(t, ipc.StatusStale, sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 9}).Status)
	assert.Equal(t, ipc.StatusStale, sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 8, Terrain: terrainWithWall(t, 1, 1)}).Status)
}

func TestHandleRoomStateMalformedPayload(t *testing.T) {
	a := newTestAgent(t, nil, Options{})
	resp, err := a.HandleRoomState(context.Background(), ipc.Envelope{Type: ipc.TypeRoomState, Data: json.RawMessage(`{"room":`)})
	require.NoError(t, err)
	assert.Equal(t, ipc.StatusError, decodeAck(t, resp).Status)
	assert.Equal(t, 0, a.Rooms.Len())
}

func TestNonIntegerTerrainCodeIsAckedOverConnection(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := ipc.NewConnection(ipc.NewStreamTransport(server), nil)
	a := newTestAgent(t, conn, Options{})
	a.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conn.ReadLoop(ctx)

	codes := make([]string, model.RoomArea)
	for i := range codes {
		codes[i] = "0"
	}
	codes[7] = "1.5"
	data := `{"room":"W1N1","tick":4,"terrain":[` + strings.Join(codes, ",") + `]}`

	host := ipc.NewStreamTransport(client)
	require.NoError(t, client.SetDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, host.WriteEnvelope(ipc.Envelope{Type: ipc.TypeRoomState, Data: json.RawMessage(data)}))

	reply, err := host.ReadEnvelope()
	require.NoError(t, err)
	ack := decodeAck(t, &reply)
	assert.Equal(t, ipc.StatusResendTerrain, ack.Status)
	assert.Equal(t, "W1N1", ack.Room)
	assert.Contains(t, ack.Error, "invalid terrain code")
	assert.Contains(t, ack.Error, "index 7")
	assert.Equal(t, 0, a.Rooms.Len())
}

func TestTerrainPersistedOnTickAndReloaded(t *testing.T) {
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "terrain.json"))
	require.NoError(t, err)

	a := newTestAgent(t, nil, Options{Store: store})
	require.Equal(t, ipc.StatusOK, sendRoomState(t, a, model.RoomState{Room: "W1N1", Tick: 1, Terrain: terrainWithWall(t, 10, 20)}).Status)

	// Persistence is deferred to the next tick.
	_, err = store.LoadTerrain(context.Background(), "W1N1")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, 1, a.Runner.Len())

	assert.Equal(t, ipc.StatusOK, sendTick(t, a, 2, 500).Status)
	assert.False(t, a.Runner.HasTask())

	// A fresh agent, as after a restart, gets terrain from the store.
	restarted := newTestAgent(t, nil, Options{Store: store})
	ack := sendRoomState(t, restarted, model.RoomState{Room: "W1N1", Tick: 3})
	assert.Equal(t, ipc.StatusOK, ack.Status)

	snap, ok := restarted.Rooms.Get("W1N1")
	require.True(t, ok)
	assert.False(t, snap.Walkable(model.MustCoord(10, 20)))
	assert.False(t, restarted.Runner.HasTask(), "terrain loaded from the store is not saved again")
}

func TestHandleTickThrottled(t *testing.T) {
	a := newTestAgent(t, nil, Options{MinTickLimit: 450})
	ran := false
	a.Runner.CreateTask(func(context.Context, func(Task)) { ran = true })

	assert.Equal(t, ipc.StatusThrottled, sendTick(t, a, 1, 200).Status)
	assert.False(t, ran)

	assert.Equal(t, ipc.StatusOK, sendTick(t, a, 2, 500).Status)
	assert.True(t, ran)
}

func TestHandleInitRoomRequestsTerrainAndSurveys(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	a := newTestAgent(t, ipc.NewConnection(ipc.NewStreamTransport(server), nil), Options{})

	requests := make(chan ipc.Envelope, 1)
	go func() {
		env, err := ipc.NewStreamTransport(client).ReadEnvelope()
		if err == nil {
			requests <- env
		}
		close(requests)
	}()

	resp, err := a.HandleInitRoom(context.Background(), envelope(t, ipc.TypeInitRoom, ipc.InitRoomMessage{Room: "W5N5"}))
	require.NoError(t, err)
	assert.Equal(t, ipc.StatusOK, decodeAck(t, resp).Status)
	assert.Equal(t, "W5N5", a.HomeRoom)

	req, ok := <-requests
	require.True(t, ok, "expected a request_terrain command")
	assert.Equal(t, ipc.TypeRequestTerrain, req.Type)
	var cmd ipc.RequestTerrainCommand
	require.NoError(t, req.Decode(&cmd))
	assert.Equal(t, "W5N5", cmd.Room)

	// No terrain yet: the survey re-queues itself.
	require.Equal(t, ipc.StatusOK, sendTick(t, a, 1, 500).Status)
	assert.Equal(t, 1, a.Runner.Len())

	require.Equal(t, ipc.StatusOK, sendRoomState(t, a, model.RoomState{Room: "W5N5", Tick: 2, Terrain: terrainWithWall(t, 4, 4)}).Status)
	require.Equal(t, ipc.StatusOK, sendTick(t, a, 3, 500).Status)
	assert.False(t, a.Runner.HasTask())
}

func TestHandleInitRoomRequiresRoom(t *testing.T) {
	a := newTestAgent(t, nil, Options{})
	resp, err := a.HandleInitRoom(context.Background(), envelope(t, ipc.TypeInitRoom, ipc.InitRoomMessage{}))
	require.NoError(t, err)
	assert.Equal(t, ipc.StatusError, decodeAck(t, resp).Status)
	assert.False(t, a.Runner.HasTask())
}
