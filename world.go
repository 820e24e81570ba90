package main

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"sky-sentry/server/internal/drone"
	"sky-sentry/server/internal/geom"
)

const (
	actorMoveSpeed = 8.0  // units per second
	actorRadius    = 1.0  //
	droneRadius    = 0.6  //
	dummyRadius    = 1.2  // practice dummies
	actuatorRate   = 6.0  // fraction of remaining pose error closed per second
	gravity        = 25.0 // fall acceleration for released bodies
	terrainGroup   = "terrain"
)

// worldObject is anything raycastable in the arena: actor bodies, drone
// bodies, practice dummies, and terrain. It implements both drone.Body and
// drone.Target; all mutation goes through the owning World's lock.
type worldObject struct {
	world *World

	id     string
	group  string
	tagged bool
	radius float64

	pose     geom.Pose
	velocity mgl64.Vec3
	intent   mgl64.Vec3 // normalized move intent for actor bodies

	alive     bool
	collides  bool
	hasLight  bool
	lightOn   bool
	fades     bool
	ballistic bool    // actuators released, body falls free
	opacity   float64 // 0 solid .. 1 invisible
	fadeRate  float64 // opacity gained per second while fading

	hasActuator bool
	driven      bool      // actuator has a commanded pose
	commanded   geom.Pose // last commanded pose
	authority   string    // actor currently simulating this body
}

// World is the in-memory scene: a flat square arena of spherical objects.
type World struct {
	mu         sync.Mutex
	objects    map[string]*worldObject
	rng        *rand.Rand
	halfExtent float64
	nextSeq    uint64
}

func newWorld(seed int64, halfExtent float64) *World {
	return &World{
		objects:    make(map[string]*worldObject),
		rng:        rand.New(rand.NewSource(seed)),
		halfExtent: halfExtent,
	}
}

// seed scatters terrain spheres and tagged practice dummies around the arena.
func (w *World) seed(obstacles, dummies int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := 0; i < obstacles; i++ {
		radius := 1.5 + w.rng.Float64()*3
		pos := w.randomGroundLocked(radius)
		obj := w.newObjectLocked(fmt.Sprintf("rock-%d", i+1), terrainGroup, pos, radius)
		obj.collides = true
	}
	for i := 0; i < dummies; i++ {
		w.addDummyLocked(fmt.Sprintf("dummy-%d", i+1))
	}
}

// AddDummy places one fresh practice dummy at a random spot.
func (w *World) AddDummy() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSeq++
	return w.addDummyLocked(fmt.Sprintf("dummy-r%d", w.nextSeq)).id
}

func (w *World) addDummyLocked(id string) *worldObject {
	obj := w.newObjectLocked(id, id, w.randomGroundLocked(dummyRadius), dummyRadius)
	obj.tagged = true
	obj.collides = true
	return obj
}

func (w *World) randomGroundLocked(radius float64) mgl64.Vec3 {
	span := w.halfExtent - radius
	return mgl64.Vec3{
		(w.rng.Float64()*2 - 1) * span,
		radius,
		(w.rng.Float64()*2 - 1) * span,
	}
}

func (w *World) newObjectLocked(id, group string, pos mgl64.Vec3, radius float64) *worldObject {
	obj := &worldObject{
		world:  w,
		id:     id,
		group:  group,
		radius: radius,
		pose:   geom.Pose{Position: pos, Orientation: mgl64.QuatIdent()},
		alive:  true,
	}
	w.objects[id] = obj
	return obj
}

// AddActorBody creates the controllable body for a joining actor. The body
// is its own occlusion group and moves by intent, not by actuator.
func (w *World) AddActorBody(actorID string, pos mgl64.Vec3) *worldObject {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj := w.newObjectLocked(actorID, actorID, pos, actorRadius)
	obj.collides = true
	return obj
}

// AddDroneBody instantiates a drone body. Drone bodies carry a light, fade
// at teardown, and stay non-collidable until teardown enables collision.
func (w *World) AddDroneBody(id string, pose geom.Pose) *worldObject {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj := w.newObjectLocked(id, id, pose.Position, droneRadius)
	obj.pose = pose
	obj.hasLight = true
	obj.fades = true
	obj.hasActuator = true
	return obj
}

func (w *World) object(id string) (*worldObject, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.objects[id]
	return obj, ok
}

// Remove deletes an object. Anything still holding a reference sees it as
// dead.
func (w *World) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if obj, ok := w.objects[id]; ok {
		obj.alive = false
		delete(w.objects, id)
	}
}

func (w *World) beginFade(id string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.objects[id]
	if !ok || d <= 0 {
		return
	}
	obj.fadeRate = 1 / d.Seconds()
}

// Targets enumerates every live tagged object.
func (w *World) Targets() []drone.Target {
	w.mu.Lock()
	defer w.mu.Unlock()
	targets := make([]drone.Target, 0)
	for _, obj := range w.objects {
		if obj.alive && obj.tagged {
			targets = append(targets, obj)
		}
	}
	return targets
}

// Raycast sweeps the segment from -> to against every collidable sphere not
// in the exclude set and reports the nearest hit.
func (w *World) Raycast(from, to mgl64.Vec3, exclude []drone.ObjectID) (drone.RayHit, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	span := to.Sub(from)
	length := span.Len()
	if length == 0 {
		return drone.RayHit{}, false
	}
	dir := span.Mul(1 / length)

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[string(id)] = struct{}{}
	}

	var best *worldObject
	bestT := math.MaxFloat64
	for _, obj := range w.objects {
		if !obj.alive || !obj.collides {
			continue
		}
		if _, excluded := skip[obj.id]; excluded {
			continue
		}
		t, ok := raySphere(from, dir, obj.pose.Position, obj.radius)
		if !ok || t > length || t >= bestT {
			continue
		}
		bestT = t
		best = obj
	}
	if best == nil {
		return drone.RayHit{}, false
	}
	return drone.RayHit{Object: drone.ObjectID(best.id), Group: drone.GroupID(best.group)}, true
}

// raySphere returns the distance along dir (unit length) at which the ray
// from origin first enters the sphere.
func raySphere(origin, dir, center mgl64.Vec3, radius float64) (float64, bool) {
	oc := center.Sub(origin)
	proj := oc.Dot(dir)
	perpSq := oc.Dot(oc) - proj*proj
	if perpSq > radius*radius {
		return 0, false
	}
	half := math.Sqrt(radius*radius - perpSq)
	t := proj - half
	if t < 0 {
		if proj+half < 0 {
			return 0, false
		}
		t = 0 // origin inside the sphere
	}
	return t, true
}

// Integrate advances one frame of host-side motion: actor intents, actuator
// easing, ballistic falls, and fade transitions.
func (w *World) Integrate(dt float64) {
	if dt <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, obj := range w.objects {
		switch {
		case obj.intent.Len() > 0:
			dir := obj.intent.Normalize()
			obj.velocity = dir.Mul(actorMoveSpeed)
			next := obj.pose.Position.Add(obj.velocity.Mul(dt))
			next = w.clampToArenaLocked(next, obj.radius)
			obj.pose.Position = next
			obj.pose.Orientation = geom.LookAt(mgl64.Vec3{}, dir)
		case obj.hasActuator && obj.driven:
			alpha := 1 - math.Exp(-actuatorRate*dt)
			prev := obj.pose.Position
			obj.pose.Position = geom.Lerp(prev, obj.commanded.Position, alpha)
			obj.pose.Orientation = mgl64.QuatSlerp(obj.pose.Orientation, obj.commanded.Orientation, alpha)
			obj.velocity = obj.pose.Position.Sub(prev).Mul(1 / dt)
		case obj.ballistic:
			obj.velocity = obj.velocity.Add(mgl64.Vec3{0, -gravity * dt, 0})
			obj.pose.Position = obj.pose.Position.Add(obj.velocity.Mul(dt))
			if obj.pose.Position.Y() < obj.radius {
				obj.pose.Position = mgl64.Vec3{obj.pose.Position.X(), obj.radius, obj.pose.Position.Z()}
				obj.velocity = mgl64.Vec3{}
			}
		}

		if obj.fadeRate > 0 && obj.opacity < 1 {
			obj.opacity = math.Min(1, obj.opacity+obj.fadeRate*dt)
		}
	}
}

func (w *World) clampToArenaLocked(pos mgl64.Vec3, radius float64) mgl64.Vec3 {
	limit := w.halfExtent - radius
	return mgl64.Vec3{
		mgl64.Clamp(pos.X(), -limit, limit),
		math.Max(pos.Y(), radius),
		mgl64.Clamp(pos.Z(), -limit, limit),
	}
}

// SnapshotObjects lists the non-actor scenery (terrain, dummies) for state
// broadcasts.
func (w *World) SnapshotObjects() []objectView {
	w.mu.Lock()
	defer w.mu.Unlock()
	views := make([]objectView, 0, len(w.objects))
	for _, obj := range w.objects {
		views = append(views, objectView{
			ID:      obj.id,
			Group:   obj.group,
			Pos:     vec3Array(obj.pose.Position),
			Radius:  obj.radius,
			Tagged:  obj.tagged,
			Opacity: obj.opacity,
		})
	}
	return views
}

func vec3Array(v mgl64.Vec3) [3]float64 {
	return [3]float64{v.X(), v.Y(), v.Z()}
}

// --- drone.Body / drone.Target implementation ---

func (o *worldObject) ID() drone.ObjectID { return drone.ObjectID(o.id) }

func (o *worldObject) Group() drone.GroupID { return drone.GroupID(o.group) }

func (o *worldObject) Position() mgl64.Vec3 {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	return o.pose.Position
}

func (o *worldObject) Alive() bool {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	return o.alive
}

// Destroy is the destructive resolution of an engagement.
func (o *worldObject) Destroy() {
	o.world.Remove(o.id)
}

func (o *worldObject) Pose() geom.Pose {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	return o.pose
}

func (o *worldObject) Velocity() mgl64.Vec3 {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	return o.velocity
}

func (o *worldObject) SetPose(p geom.Pose) {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	o.pose = p
	o.velocity = mgl64.Vec3{}
}

func (o *worldObject) Actuator() (drone.Actuator, bool) {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	if !o.hasActuator {
		return nil, false
	}
	return actuatorHandle{obj: o}, true
}

func (o *worldObject) Light() (drone.Light, bool) {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	if !o.hasLight {
		return nil, false
	}
	return lightHandle{obj: o}, true
}

func (o *worldObject) SupportsFade() bool {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	return o.fades
}

func (o *worldObject) ReleaseActuators() {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	o.hasActuator = false
	o.driven = false
	o.ballistic = true
}

func (o *worldObject) EnableCollision() {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	o.collides = true
}

func (o *worldObject) TransferAuthority(actor drone.ActorID) bool {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	o.authority = string(actor)
	return true
}

func (o *worldObject) setIntent(v mgl64.Vec3) {
	o.world.mu.Lock()
	defer o.world.mu.Unlock()
	o.intent = v
	if v.Len() == 0 {
		o.velocity = mgl64.Vec3{}
	}
}

// actuatorHandle eases its body toward the last commanded pose; Integrate
// does the actual motion.
type actuatorHandle struct {
	obj *worldObject
}

func (a actuatorHandle) Drive(target geom.Pose) {
	a.obj.world.mu.Lock()
	defer a.obj.world.mu.Unlock()
	if !a.obj.hasActuator {
		return
	}
	a.obj.commanded = target
	a.obj.driven = true
}

type lightHandle struct {
	obj *worldObject
}

func (l lightHandle) Enabled() bool {
	l.obj.world.mu.Lock()
	defer l.obj.world.mu.Unlock()
	return l.obj.lightOn
}

func (l lightHandle) SetEnabled(on bool) {
	l.obj.world.mu.Lock()
	defer l.obj.world.mu.Unlock()
	l.obj.lightOn = on
}
