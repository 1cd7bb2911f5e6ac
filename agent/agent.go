package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nstehr/creep/creep-core/ipc"
	"github.com/nstehr/creep/creep-core/model"
	"github.com/nstehr/creep/creep-core/rules"
	"github.com/nstehr/creep/creep-core/storage"
)

// surveyMaxAttempts bounds how many ticks an init_room survey waits for terrain.
const surveyMaxAttempts = 100

var errTerrainUnavailable = errors.New("terrain unavailable")

// Options are the optional collaborators of an Agent.
type Options struct {
	// Store caches terrain across restarts. Nil disables the cache.
	Store storage.Store
	// MinTickLimit skips ticks whose cpu.tickLimit is below it. Zero disables the guard.
	MinTickLimit int
}

// Agent owns one host connection: it turns host messages into published
// room snapshots and runs deferred work on host ticks.
type Agent struct {
	Conn     *ipc.Connection
	Player   string
	Shard    string
	Rooms    *Registry
	Engine   *rules.Engine
	Runner   *TickRunner
	HomeRoom string

	store        storage.Store
	minTickLimit int
	persisted    map[string]bool // rooms whose terrain is already in the store
}

func New(conn *ipc.Connection, rooms *Registry, engine *rules.Engine, opts Options) *Agent {
	return &Agent{
		Conn:         conn,
		Rooms:        rooms,
		Engine:       engine,
		Runner:       &TickRunner{},
		store:        opts.Store,
		minTickLimit: opts.MinTickLimit,
		persisted:    make(map[string]bool),
	}
}

// Register wires the agent's handlers into its connection.
func (a *Agent) Register() {
	a.Conn.RegisterHandler(ipc.TypeHello, a.HandleHello)
	a.Conn.RegisterHandler(ipc.TypeRoomState, a.HandleRoomState)
	a.Conn.RegisterHandler(ipc.TypeTick, a.HandleTick)
	a.Conn.RegisterHandler(ipc.TypeInitRoom, a.HandleInitRoom)
}

// HandleHello completes the handshake so the host knows the bridge is ready.
func (a *Agent) HandleHello(_ context.Context, env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := env.Decode(&hello); err != nil {
		return nil, err
	}

	a.Player = hello.Player
	a.Shard = hello.Shard
	if a.Conn != nil {
		a.Conn.Player = hello.Player
	}
	slog.Info("player identified", "player", a.Player, "shard", a.Shard)

	return ipc.NewAck(ipc.AckMessage{Status: ipc.StatusOK}), nil
}

// HandleRoomState publishes a new snapshot for the room. A bad or missing
// terrain buffer publishes nothing and asks the host to resend it.
func (a *Agent) HandleRoomState(ctx context.Context, env ipc.Envelope) (*ipc.Envelope, error) {
	// The host blocks on the ack, so even an undecodable payload gets one.
	var rs model.RoomState
	err := env.Decode(&rs)
	var snap model.RoomSnapshot
	if err == nil {
		snap, err = a.snapshotFor(ctx, rs)
	}
	if err == nil {
		err = a.Rooms.Publish(snap)
	}
	if err != nil {
		status := ackStatus(err)
		slog.Warn("room state rejected", "room", rs.Room, "tick", rs.Tick, "status", status, "error", err)
		return ipc.NewAck(ipc.AckMessage{Status: status, Room: rs.Room, Error: err.Error()}), nil
	}

	if len(rs.Terrain) > 0 {
		slog.Info("terrain decoded",
			"room", snap.Name(),
			"tick", snap.Tick(),
			"walkable", snap.Terrain().WalkableCount(),
			"swamp", snap.Terrain().Count(model.Swamp),
			"exits", len(snap.Terrain().Exits()),
		)
		a.schedulePersist(snap)
	} else {
		slog.Debug("room state advanced", "room", snap.Name(), "tick", snap.Tick())
	}

	return ipc.NewAck(ipc.AckMessage{Status: ipc.StatusOK, Room: rs.Room}), nil
}

// HandleTick runs one deferred task per host tick, unless the host's CPU
// budget is too low to spend anything.
func (a *Agent) HandleTick(ctx context.Context, env ipc.Envelope) (*ipc.Envelope, error) {
	var ts model.TickState
	if err := env.Decode(&ts); err != nil {
		return nil, err
	}

	if a.minTickLimit > 0 && ts.CPU.TickLimit < a.minTickLimit {
		slog.Warn("cpu budget too low, skipping tick",
			"tick", ts.Tick, "tickLimit", ts.CPU.TickLimit, "bucket", ts.CPU.Bucket, "min", a.minTickLimit)
		return ipc.NewAck(ipc.AckMessage{Status: ipc.StatusThrottled}), nil
	}

	if a.Runner.Tick(ctx) {
		slog.Debug("tick task ran", "tick", ts.Tick, "pending", a.Runner.Len())
	}
	return ipc.NewAck(ipc.AckMessage{Status: ipc.StatusOK}), nil
}

// HandleInitRoom marks the home room and queues a survey of its terrain.
// If the terrain isn't known yet the host is asked for it.
func (a *Agent) HandleInitRoom(_ context.Context, env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.InitRoomMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	if msg.Room == "" {
		return ipc.NewAck(ipc.AckMessage{Status: ipc.StatusError, Error: "room is required"}), nil
	}

	a.HomeRoom = msg.Room
	slog.Info("initializing room", "room", msg.Room, "player", a.Player)

	if _, ok := a.Rooms.Get(msg.Room); !ok {
		a.requestTerrain(msg.Room, "init_room")
	}
	a.Runner.CreateTask(a.surveyTask(msg.Room, 1))

	return ipc.NewAck(ipc.AckMessage{Status: ipc.StatusOK, Room: msg.Room}), nil
}

func (a *Agent) snapshotFor(ctx context.Context, rs model.RoomState) (model.RoomSnapshot, error) {
	if len(rs.Terrain) > 0 {
		grid, err := model.DecodeTerrain([]int(rs.Terrain))
		if err != nil {
			return model.RoomSnapshot{}, err
		}
		return model.NewSnapshot(rs.Room, rs.Tick, grid)
	}

	if cur, ok := a.Rooms.Get(rs.Room); ok {
		if rs.Tick < cur.Tick() {
			return model.RoomSnapshot{}, fmt.Errorf("%w: %s tick %d, have %d", ErrStaleSnapshot, rs.Room, rs.Tick, cur.Tick())
		}
		return cur.Advance(rs.Tick)
	}

	if a.store != nil {
		grid, err := storage.LoadGrid(ctx, a.store, rs.Room)
		switch {
		case err == nil:
			a.persisted[rs.Room] = true
			slog.Info("terrain loaded from store", "room", rs.Room)
			return model.NewSnapshot(rs.Room, rs.Tick, grid)
		case errors.Is(err, storage.ErrNotFound):
		default:
			slog.Warn("terrain store load failed", "room", rs.Room, "error", err)
		}
	}

	return model.RoomSnapshot{}, fmt.Errorf("%w: %s", errTerrainUnavailable, rs.Room)
}

func (a *Agent) schedulePersist(snap model.RoomSnapshot) {
	if a.store == nil || a.persisted[snap.Name()] {
		return
	}
	a.persisted[snap.Name()] = true

	a.Runner.CreateTask(func(ctx context.Context, _ func(Task)) {
		if err := a.store.SaveTerrain(ctx, snap.Name(), snap.Terrain()); err != nil {
			slog.Error("terrain save failed", "room", snap.Name(), "error", err)
			delete(a.persisted, snap.Name())
			return
		}
		slog.Info("terrain saved", "room", snap.Name())
	})
}

// surveyTask logs the rule classification of room once its terrain is known,
// retrying on later ticks until then.
func (a *Agent) surveyTask(room string, attempt int) Task {
	return func(_ context.Context, next func(Task)) {
		snap, ok := a.Rooms.Get(room)
		if !ok {
			if attempt >= surveyMaxAttempts {
				slog.Warn("room survey gave up waiting for terrain", "room", room, "attempts", attempt)
				return
			}
			next(a.surveyTask(room, attempt+1))
			return
		}

		cls, err := a.Engine.Classify(snap)
		if err != nil {
			slog.Error("room survey failed", "room", room, "error", err)
			return
		}
		slog.Info("room surveyed", "room", room, "tick", snap.Tick(), "tiles", cls.Counts())
	}
}

func (a *Agent) requestTerrain(room, reason string) {
	if a.Conn == nil {
		return
	}
	if err := a.Conn.Send(ipc.TypeRequestTerrain, ipc.RequestTerrainCommand{Room: room, Reason: reason}); err != nil {
		slog.Error("failed to request terrain", "room", room, "error", err)
	}
}

func ackStatus(err error) string {
	switch {
	case errors.Is(err, ErrStaleSnapshot):
		return ipc.StatusStale
	case errors.Is(err, model.ErrLengthMismatch),
		errors.Is(err, model.ErrInvalidFlag),
		errors.Is(err, errTerrainUnavailable):
		return ipc.StatusResendTerrain
	default:
		return ipc.StatusError
	}
}
