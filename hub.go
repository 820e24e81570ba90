package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"sky-sentry/server/internal/drone"
	"sky-sentry/server/internal/geom"
)

const (
	writeWait             = 10 * time.Second
	dummyRespawnInterval  = 10 * time.Second
	actorSpawnRingRadius  = 4.0
	commandQueueSoftLimit = 1024
)

// Hub owns all live actors, drones, subscribers, and the shared simulation
// services. Everything the drones consume (world, effects, clock, timers,
// frame and toggle buses) hangs off the hub.
type Hub struct {
	cfg    serverConfig
	logger *log.Logger

	world   *World
	clock   *frameClock
	timers  *timerQueue
	frames  *frameBus
	toggles *toggleBus
	effects *effectLog

	mu          sync.Mutex
	actors      map[string]*actorHandle
	drones      map[string]*drone.Drone
	subscribers map[string]*subscriber
	commands    []command
	nextID      atomic.Uint64
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// actorHandle implements drone.Owner against the hub's world. The body
// lookup fails while the actor has no body, for example after it was
// removed.
type actorHandle struct {
	id    string
	world *World
}

func (a *actorHandle) ID() drone.ActorID { return drone.ActorID(a.id) }

func (a *actorHandle) Body() (drone.Body, bool) {
	obj, ok := a.world.object(a.id)
	if !ok {
		return nil, false
	}
	return obj, true
}

// command is a client intent captured for processing on the next frame.
type command struct {
	actorID string
	kind    string // "move", "toggle-light", "despawn-drone", "leave"
	move    mgl64.Vec3
	droneID string
}

func newHub(cfg serverConfig, logger *log.Logger) *Hub {
	clock := newFrameClock(time.Now())
	timers := newTimerQueue(clock)
	world := newWorld(cfg.WorldSeed, cfg.ArenaHalfExtent)
	world.seed(cfg.ObstacleCount, cfg.DummyCount)

	h := &Hub{
		cfg:         cfg,
		logger:      logger,
		world:       world,
		clock:       clock,
		timers:      timers,
		frames:      newFrameBus(),
		toggles:     newToggleBus(),
		effects:     newEffectLog(world, timers, clock, cfg.WorldSeed+1),
		actors:      make(map[string]*actorHandle),
		drones:      make(map[string]*drone.Drone),
		subscribers: make(map[string]*subscriber),
	}
	h.timers.After(dummyRespawnInterval, h.replenishDummies)
	return h
}

// replenishDummies tops the arena back up to the configured dummy count and
// reschedules itself.
func (h *Hub) replenishDummies() {
	missing := h.cfg.DummyCount - len(h.world.Targets())
	for i := 0; i < missing; i++ {
		id := h.world.AddDummy()
		h.logger.Debug("respawned practice dummy", "id", id)
	}
	h.timers.After(dummyRespawnInterval, h.replenishDummies)
}

// deps bundles the hub's services for a new drone.
func (h *Hub) deps() drone.Deps {
	return drone.Deps{
		World:     h.world,
		Effects:   h.effects,
		Clock:     h.clock,
		Timers:    h.timers,
		Frames:    h.frames,
		Toggles:   h.toggles,
		SpawnBody: h.spawnDroneBody,
	}
}

func (h *Hub) spawnDroneBody(pose geom.Pose) (drone.Body, error) {
	id := fmt.Sprintf("drone-body-%d", h.nextID.Add(1))
	return h.world.AddDroneBody(id, pose), nil
}

// Join registers a new actor, gives it a body on the spawn ring, and returns
// the current snapshot.
func (h *Hub) Join() joinResponse {
	seq := h.nextID.Add(1)
	actorID := fmt.Sprintf("actor-%d", seq)
	angle := float64(seq) * math.Pi / 4
	pos := mgl64.Vec3{
		actorSpawnRingRadius * math.Cos(angle),
		actorRadius,
		actorSpawnRingRadius * math.Sin(angle),
	}
	h.world.AddActorBody(actorID, pos)

	h.mu.Lock()
	h.actors[actorID] = &actorHandle{id: actorID, world: h.world}
	h.mu.Unlock()

	h.logger.Info("actor joined", "actor", actorID)
	return joinResponse{
		ID:      actorID,
		Actors:  h.actorViews(),
		Drones:  h.droneViews(),
		Objects: h.world.SnapshotObjects(),
		Effects: h.effects.snapshot(),
	}
}

// Subscribe associates a websocket connection with an existing actor.
func (h *Hub) Subscribe(actorID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.actors[actorID]; !ok {
		return nil, false
	}
	if existing, ok := h.subscribers[actorID]; ok {
		existing.conn.Close()
	}
	sub := &subscriber{conn: conn}
	h.subscribers[actorID] = sub
	return sub, true
}

// Disconnect closes the actor's connection and queues the cleanup of its
// body and drones for the next frame.
func (h *Hub) Disconnect(actorID string) {
	h.mu.Lock()
	sub, subOK := h.subscribers[actorID]
	if subOK {
		delete(h.subscribers, actorID)
	}
	h.mu.Unlock()
	if subOK {
		sub.conn.Close()
	}
	h.enqueue(command{actorID: actorID, kind: "leave"})
	h.logger.Info("actor disconnected", "actor", actorID)
}

// SpawnDrone creates a drone for the actor, waiting up to the configured
// bound for the actor's body. Safe to call from connection goroutines; the
// bounded wait parks only the caller.
func (h *Hub) SpawnDrone(actorID string) (string, error) {
	h.mu.Lock()
	owner, ok := h.actors[actorID]
	h.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown actor %q", actorID)
	}

	cfg := h.cfg.droneConfig()
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ownerReadyTimeout())
	defer cancel()

	d, err := drone.Spawn(ctx, owner, &cfg, h.deps())
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.drones[d.ID()] = d
	h.mu.Unlock()
	h.logger.Info("drone spawned", "drone", d.ID(), "owner", actorID)
	return d.ID(), nil
}

func (h *Hub) enqueue(cmd command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.commands) >= commandQueueSoftLimit {
		h.logger.Warn("command queue full, dropping", "kind", cmd.kind, "actor", cmd.actorID)
		return
	}
	h.commands = append(h.commands, cmd)
}

func (h *Hub) drainCommands() []command {
	h.mu.Lock()
	defer h.mu.Unlock()
	cmds := h.commands
	h.commands = nil
	return cmds
}

// applyCommand runs on the simulation goroutine, so drone entry points stay
// serialized with frame callbacks.
func (h *Hub) applyCommand(cmd command) {
	switch cmd.kind {
	case "move":
		if obj, ok := h.world.object(cmd.actorID); ok {
			obj.setIntent(cmd.move)
		}
	case "toggle-light":
		h.toggles.dispatch(cmd.droneID, drone.ActorID(cmd.actorID))
	case "despawn-drone":
		h.mu.Lock()
		d := h.drones[cmd.droneID]
		h.mu.Unlock()
		if d == nil || d.OwnerID() != drone.ActorID(cmd.actorID) {
			return
		}
		d.Teardown()
		h.mu.Lock()
		delete(h.drones, cmd.droneID)
		h.mu.Unlock()
		h.logger.Info("drone despawned", "drone", cmd.droneID, "owner", cmd.actorID)
	case "leave":
		h.mu.Lock()
		owned := make([]*drone.Drone, 0)
		for id, d := range h.drones {
			if d.OwnerID() == drone.ActorID(cmd.actorID) {
				owned = append(owned, d)
				delete(h.drones, id)
			}
		}
		delete(h.actors, cmd.actorID)
		h.mu.Unlock()
		for _, d := range owned {
			d.Teardown()
		}
		h.world.Remove(cmd.actorID)
	}
}

// HandleClientMessage validates and routes one inbound websocket message.
func (h *Hub) HandleClientMessage(actorID string, msg clientMessage) *serverEvent {
	switch msg.Type {
	case "move":
		h.enqueue(command{
			actorID: actorID,
			kind:    "move",
			move:    mgl64.Vec3{msg.DX, msg.DY, msg.DZ},
		})
	case "toggle-light":
		h.enqueue(command{actorID: actorID, kind: "toggle-light", droneID: msg.DroneID})
	case "despawn-drone":
		h.enqueue(command{actorID: actorID, kind: "despawn-drone", droneID: msg.DroneID})
	case "spawn-drone":
		droneID, err := h.SpawnDrone(actorID)
		if err != nil {
			h.logger.Error("spawn failed", "actor", actorID, "err", err)
			return &serverEvent{Type: "spawn-failed", Error: err.Error()}
		}
		return &serverEvent{Type: "drone-spawned", DroneID: droneID}
	default:
		h.logger.Debug("unknown message type", "actor", actorID, "type", msg.Type)
	}
	return nil
}

func (h *Hub) actorViews() []actorView {
	h.mu.Lock()
	handles := make([]*actorHandle, 0, len(h.actors))
	for _, a := range h.actors {
		handles = append(handles, a)
	}
	h.mu.Unlock()

	views := make([]actorView, 0, len(handles))
	for _, a := range handles {
		body, ok := a.Body()
		if !ok {
			continue
		}
		pose := body.Pose()
		views = append(views, actorView{
			ID:  a.id,
			Pos: vec3Array(pose.Position),
			Yaw: geom.Yaw(pose.Orientation),
		})
	}
	return views
}

func (h *Hub) droneViews() []droneView {
	h.mu.Lock()
	drones := make([]*drone.Drone, 0, len(h.drones))
	for _, d := range h.drones {
		drones = append(drones, d)
	}
	h.mu.Unlock()

	views := make([]droneView, 0, len(drones))
	for _, d := range drones {
		snap := d.Snapshot()
		views = append(views, droneView{
			ID:      snap.ID,
			Owner:   string(snap.Owner),
			Pos:     vec3Array(snap.Pose.Position),
			Yaw:     geom.Yaw(snap.Pose.Orientation),
			LightOn: snap.LightOn,
			Pending: snap.Pending,
		})
	}
	return views
}

// broadcastState pushes the current snapshot to every subscriber. Write
// failures disconnect the actor.
func (h *Hub) broadcastState() {
	msg := stateMessage{
		Type:       "state",
		Actors:     h.actorViews(),
		Drones:     h.droneViews(),
		Objects:    h.world.SnapshotObjects(),
		Effects:    h.effects.snapshot(),
		ServerTime: h.clock.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal state", "err", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if err != nil {
			h.logger.Warn("dropping slow subscriber", "actor", id, "err", err)
			h.Disconnect(id)
		}
	}
}

// sendEvent delivers a direct event to one subscriber. Write failures
// disconnect the actor, same as broadcastState.
func (h *Hub) sendEvent(actorID string, event serverEvent) {
	h.mu.Lock()
	sub := h.subscribers[actorID]
	h.mu.Unlock()
	if sub == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "err", err)
		return
	}
	sub.mu.Lock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = sub.conn.WriteMessage(websocket.TextMessage, data)
	sub.mu.Unlock()
	if err != nil {
		h.logger.Warn("dropping dead subscriber", "actor", actorID, "err", err)
		h.Disconnect(actorID)
	}
}
