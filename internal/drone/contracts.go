package drone

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"sky-sentry/server/internal/geom"
)

// ActorID identifies an actor in the host session layer.
type ActorID string

// ObjectID identifies a body or any other physical object in the host world.
type ObjectID string

// GroupID names the logical grouping an object belongs to. Occlusion checks
// compare the group of the first ray hit against the group of the candidate.
type GroupID string

// Target is a tagged object eligible for engagement. The controller never
// owns a target; one may vanish between selection and resolution.
type Target interface {
	ID() ObjectID
	Group() GroupID
	Position() mgl64.Vec3
	Alive() bool
	Destroy()
}

// RayHit describes the first object struck by a visibility ray.
type RayHit struct {
	Object ObjectID
	Group  GroupID
}

// WorldQuery is the read-only view of the host world the controller scans.
type WorldQuery interface {
	// Targets enumerates every object currently carrying the target tag.
	Targets() []Target
	// Raycast casts from A to B, skipping the excluded objects, and reports
	// the first hit if any.
	Raycast(from, to mgl64.Vec3, exclude []ObjectID) (RayHit, bool)
}

// Actuator moves a body toward a commanded pose using the host's physics
// integration. Bodies without one degrade to direct pose assignment.
type Actuator interface {
	Drive(geom.Pose)
}

// Light is the drone's toggleable light sub-object.
type Light interface {
	Enabled() bool
	SetEnabled(bool)
}

// Body is the physical representation of the drone or an actor in the host
// world.
type Body interface {
	ID() ObjectID
	Pose() geom.Pose
	Velocity() mgl64.Vec3
	SetPose(geom.Pose)
	// Actuator reports false when the body has no physics actuator.
	Actuator() (Actuator, bool)
	// Light reports false when the body carries no light sub-object.
	Light() (Light, bool)
	// SupportsFade reports whether the body can run a fade transition at
	// teardown; bodies that cannot are removed on the spot.
	SupportsFade() bool
	// ReleaseActuators detaches any pose actuators so the body moves freely.
	ReleaseActuators()
	EnableCollision()
	// TransferAuthority asks the host to hand simulation of this body to the
	// given actor. Refusal is not an error, only a lost optimization.
	TransferAuthority(ActorID) bool
}

// Owner is the actor a drone serves. Its body may be absent on any given
// tick, for example while the actor respawns.
type Owner interface {
	ID() ActorID
	Body() (Body, bool)
}

// BeamSpec shapes the segmented attack beam drawn between the drone and its
// target.
type BeamSpec struct {
	Duration time.Duration
	Segments int
	Jitter   float64
}

// Effects is the host visual-effect and interpolation service.
type Effects interface {
	SpawnBeam(from, to mgl64.Vec3, spec BeamSpec)
	Highlight(target ObjectID, d time.Duration)
	FadeOut(body ObjectID, d time.Duration)
	RemoveNow(body ObjectID)
	RemoveAfter(body ObjectID, d time.Duration)
}

// Clock is a monotonically non-decreasing time source.
type Clock interface {
	Now() time.Time
}

// Scheduler registers fire-once callbacks. The host pumps them on the same
// goroutine that delivers frames, so callbacks never race ticks.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Subscription is a live event registration. Close is idempotent.
type Subscription interface {
	Close()
}

// Frames delivers the host's per-frame callback.
type Frames interface {
	OnFrame(fn func(now time.Time, dt float64)) Subscription
}

// Toggles delivers remote light-toggle requests addressed to a drone, tagged
// with the identity of the requesting actor.
type Toggles interface {
	OnToggle(droneID string, fn func(requester ActorID)) Subscription
}

// Deps bundles the host collaborators a drone consumes. All fields are
// required.
type Deps struct {
	World   WorldQuery
	Effects Effects
	Clock   Clock
	Timers  Scheduler
	Frames  Frames
	Toggles Toggles
	// SpawnBody instantiates the drone's physical body at the given pose.
	SpawnBody func(geom.Pose) (Body, error)
}

func (d Deps) validate() error {
	switch {
	case d.World == nil:
		return errors.New("drone: missing world collaborator")
	case d.Effects == nil:
		return errors.New("drone: missing effects collaborator")
	case d.Clock == nil:
		return errors.New("drone: missing clock collaborator")
	case d.Timers == nil:
		return errors.New("drone: missing timer collaborator")
	case d.Frames == nil:
		return errors.New("drone: missing frame collaborator")
	case d.Toggles == nil:
		return errors.New("drone: missing toggle collaborator")
	case d.SpawnBody == nil:
		return errors.New("drone: missing body factory")
	}
	return nil
}
