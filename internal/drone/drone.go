// Package drone implements an autonomous sentry drone: it follows its owning
// actor at a hover offset, scans for tagged targets with line-of-sight
// checks, and engages the closest visible one on a fixed cooldown. The host
// world, physics, effects, and session layer are consumed through the narrow
// contracts in contracts.go; the package itself holds no timing loop and
// runs entirely inside host-delivered callbacks.
package drone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sky-sentry/server/internal/geom"
)

// ErrOwnerNotReady reports that the owner's body never became available
// within the spawn wait. No partial drone is left behind.
var ErrOwnerNotReady = errors.New("drone: owner body not ready")

// fadeDuration is the fixed teardown fade before the body is removed.
const fadeDuration = time.Second

// Drone owns one sentry drone end to end. After Spawn returns, every
// mutating method must be invoked on the host's serialized callback
// goroutine; Active and Snapshot are safe from any goroutine, since hosts
// build join and broadcast snapshots off the simulation goroutine.
type Drone struct {
	id    string
	owner Owner
	cfg   Config
	deps  Deps

	body Body
	seq  *sequencer

	mu     sync.Mutex
	subs   []Subscription
	active bool
}

// Spawn validates the configuration, waits for the owner's body (bounded by
// ctx), instantiates the drone body above it, and registers the frame and
// light-toggle subscriptions. A nil cfg selects DefaultConfig.
func Spawn(ctx context.Context, owner Owner, cfg *Config, deps Deps) (*Drone, error) {
	if owner == nil {
		return nil, errors.New("drone: nil owner")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	conf := DefaultConfig()
	if cfg != nil {
		conf = *cfg
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	ownerBody, err := awaitOwnerBody(ctx, owner, deps.Frames)
	if err != nil {
		return nil, err
	}

	start := geom.Pose{
		Position:    ownerBody.Pose().Position.Add(geom.Up.Mul(conf.HoverOffset)),
		Orientation: geom.YawQuat(geom.Yaw(ownerBody.Pose().Orientation)),
	}
	body, err := deps.SpawnBody(start)
	if err != nil {
		return nil, fmt.Errorf("drone: spawn body: %w", err)
	}

	// Handing simulation of the body to the owner keeps follow latency low
	// on hosts that support it; refusal costs nothing but smoothness.
	body.TransferAuthority(owner.ID())

	d := &Drone{
		id:     uuid.NewString(),
		owner:  owner,
		cfg:    conf,
		deps:   deps,
		body:   body,
		active: true,
	}
	d.seq = newSequencer(conf, deps, d.Active)
	d.subs = append(d.subs,
		deps.Frames.OnFrame(d.onFrame),
		deps.Toggles.OnToggle(d.id, d.ToggleLight),
	)
	return d, nil
}

// awaitOwnerBody polls for the owner's body once per host frame until ctx
// gives up. Only the calling goroutine parks; frames keep running.
func awaitOwnerBody(ctx context.Context, owner Owner, frames Frames) (Body, error) {
	if body, ok := owner.Body(); ok {
		return body, nil
	}
	ready := make(chan Body, 1)
	sub := frames.OnFrame(func(time.Time, float64) {
		if body, ok := owner.Body(); ok {
			select {
			case ready <- body:
			default:
			}
		}
	})
	defer sub.Close()

	select {
	case body := <-ready:
		return body, nil
	case <-ctx.Done():
		return nil, ErrOwnerNotReady
	}
}

// ID returns the drone's unique identifier.
func (d *Drone) ID() string { return d.id }

// Config returns the tuning the drone spawned with.
func (d *Drone) Config() Config { return d.cfg }

// Active reports whether the drone still ticks. Safe from any goroutine.
func (d *Drone) Active() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// OwnerID returns the identity of the actor the drone serves.
func (d *Drone) OwnerID() ActorID { return d.owner.ID() }

func (d *Drone) onFrame(now time.Time, _ float64) { d.Tick(now) }

// Tick advances the drone by one frame: the flight command is applied first,
// then the attack check, so targeting fires from the freshly commanded
// position. A drone whose owner currently has no body holds still.
func (d *Drone) Tick(now time.Time) {
	if !d.Active() {
		return
	}
	ownerBody, ok := d.owner.Body()
	if !ok {
		return
	}

	desired := ownerBody.Pose().Position.Add(geom.Up.Mul(d.cfg.HoverOffset))
	yaw := geom.Yaw(ownerBody.Pose().Orientation)
	if actuator, ok := d.body.Actuator(); ok {
		cmd := ComputeFlightCommand(d.body.Pose(), d.body.Velocity(), desired, yaw, d.cfg.MaxTiltRadians)
		actuator.Drive(geom.Pose{Position: cmd.Position, Orientation: cmd.Orientation})
	} else {
		// Degraded mode: no actuator means no banking or easing, just the
		// correct pose.
		d.body.SetPose(geom.Pose{Position: desired, Orientation: geom.YawQuat(yaw)})
	}

	exclude := []ObjectID{d.body.ID(), ownerBody.ID()}
	d.seq.Tick(now, d.body.Pose().Position, exclude)
}

// ToggleLight flips the drone's light if the request comes from the owning
// actor. Requests from anyone else are ignored, as are requests on bodies
// without a light.
func (d *Drone) ToggleLight(requester ActorID) {
	if !d.Active() {
		return
	}
	if requester != d.owner.ID() {
		return
	}
	light, ok := d.body.Light()
	if !ok {
		return
	}
	light.SetEnabled(!light.Enabled())
}

// Teardown releases the drone exactly once: it stops ticking, drops every
// subscription synchronously, and either fades the body out while it falls
// free or removes it on the spot. Calling it again is a no-op.
func (d *Drone) Teardown() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	for _, sub := range subs {
		if sub != nil {
			sub.Close()
		}
	}

	if d.body == nil {
		return
	}
	if d.body.SupportsFade() {
		d.body.ReleaseActuators()
		d.body.EnableCollision()
		d.deps.Effects.FadeOut(d.body.ID(), fadeDuration)
		d.deps.Effects.RemoveAfter(d.body.ID(), fadeDuration)
	} else {
		d.deps.Effects.RemoveNow(d.body.ID())
	}
}

// Snapshot is a read-only view of the drone for state broadcasts.
type Snapshot struct {
	ID      string
	Owner   ActorID
	Body    ObjectID
	Pose    geom.Pose
	LightOn bool
	Pending int
	Active  bool
}

// Snapshot captures the drone's externally visible state. It performs no
// mutation and is safe from any goroutine.
func (d *Drone) Snapshot() Snapshot {
	d.mu.Lock()
	snap := Snapshot{ID: d.id, Owner: d.owner.ID(), Active: d.active}
	d.mu.Unlock()
	if d.body != nil {
		snap.Body = d.body.ID()
		snap.Pose = d.body.Pose()
		if light, ok := d.body.Light(); ok {
			snap.LightOn = light.Enabled()
		}
	}
	if d.seq != nil {
		snap.Pending = d.seq.Pending()
	}
	return snap
}
