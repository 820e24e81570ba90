package drone

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"sky-sentry/server/internal/geom"
)

// fakeSphere stands in for any world object: targets, walls, bodies.
type fakeSphere struct {
	id        string
	group     string
	pos       mgl64.Vec3
	radius    float64
	tagged    bool
	alive     bool
	destroyed int
}

func (s *fakeSphere) ID() ObjectID         { return ObjectID(s.id) }
func (s *fakeSphere) Group() GroupID       { return GroupID(s.group) }
func (s *fakeSphere) Position() mgl64.Vec3 { return s.pos }
func (s *fakeSphere) Alive() bool          { return s.alive }
func (s *fakeSphere) Destroy() {
	s.destroyed++
	s.alive = false
}

// fakeWorld implements WorldQuery over a flat slice of spheres.
type fakeWorld struct {
	spheres []*fakeSphere
	events  *[]string
}

func (w *fakeWorld) add(id, group string, pos mgl64.Vec3, radius float64, tagged bool) *fakeSphere {
	s := &fakeSphere{id: id, group: group, pos: pos, radius: radius, tagged: tagged, alive: true}
	w.spheres = append(w.spheres, s)
	return s
}

func (w *fakeWorld) Targets() []Target {
	if w.events != nil {
		*w.events = append(*w.events, "scan")
	}
	targets := make([]Target, 0)
	for _, s := range w.spheres {
		if s.alive && s.tagged {
			targets = append(targets, s)
		}
	}
	return targets
}

func (w *fakeWorld) Raycast(from, to mgl64.Vec3, exclude []ObjectID) (RayHit, bool) {
	span := to.Sub(from)
	length := span.Len()
	if length == 0 {
		return RayHit{}, false
	}
	dir := span.Mul(1 / length)

	skip := make(map[ObjectID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var best *fakeSphere
	bestT := math.MaxFloat64
	for _, s := range w.spheres {
		if !s.alive {
			continue
		}
		if _, ok := skip[s.ID()]; ok {
			continue
		}
		oc := s.pos.Sub(from)
		proj := oc.Dot(dir)
		perpSq := oc.Dot(oc) - proj*proj
		if perpSq > s.radius*s.radius {
			continue
		}
		half := math.Sqrt(s.radius*s.radius - perpSq)
		t := proj - half
		if t < 0 {
			if proj+half < 0 {
				continue
			}
			t = 0
		}
		if t > length || t >= bestT {
			continue
		}
		bestT = t
		best = s
	}
	if best == nil {
		return RayHit{}, false
	}
	return RayHit{Object: best.ID(), Group: best.Group()}, true
}

// fakeBody records everything the controller does to it.
type fakeBody struct {
	id          string
	pose        geom.Pose
	velocity    mgl64.Vec3
	hasActuator bool
	hasLight    bool
	fades       bool

	driven      []geom.Pose
	setPoses    []geom.Pose
	lightOn     bool
	released    bool
	collisionOn bool
	authority   []ActorID
	events      *[]string
}

func newFakeBody(id string) *fakeBody {
	return &fakeBody{
		id:          id,
		pose:        geom.IdentityPose(),
		hasActuator: true,
		hasLight:    true,
		fades:       true,
	}
}

func (b *fakeBody) ID() ObjectID         { return ObjectID(b.id) }
func (b *fakeBody) Pose() geom.Pose      { return b.pose }
func (b *fakeBody) Velocity() mgl64.Vec3 { return b.velocity }

func (b *fakeBody) SetPose(p geom.Pose) {
	b.setPoses = append(b.setPoses, p)
	b.pose = p
	if b.events != nil {
		*b.events = append(*b.events, "setpose")
	}
}

func (b *fakeBody) Actuator() (Actuator, bool) {
	if !b.hasActuator {
		return nil, false
	}
	return fakeActuator{body: b}, true
}

func (b *fakeBody) Light() (Light, bool) {
	if !b.hasLight {
		return nil, false
	}
	return fakeLight{body: b}, true
}

func (b *fakeBody) SupportsFade() bool { return b.fades }
func (b *fakeBody) ReleaseActuators()  { b.released = true }
func (b *fakeBody) EnableCollision()   { b.collisionOn = true }

func (b *fakeBody) TransferAuthority(actor ActorID) bool {
	b.authority = append(b.authority, actor)
	return true
}

type fakeActuator struct {
	body *fakeBody
}

func (a fakeActuator) Drive(target geom.Pose) {
	a.body.driven = append(a.body.driven, target)
	if a.body.events != nil {
		*a.body.events = append(*a.body.events, "drive")
	}
}

type fakeLight struct {
	body *fakeBody
}

func (l fakeLight) Enabled() bool      { return l.body.lightOn }
func (l fakeLight) SetEnabled(on bool) { l.body.lightOn = on }

// fakeOwner is safe for the cross-goroutine spawn-wait tests.
type fakeOwner struct {
	id   ActorID
	mu   sync.Mutex
	body *fakeBody
}

func (o *fakeOwner) ID() ActorID { return o.id }

func (o *fakeOwner) Body() (Body, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.body == nil {
		return nil, false
	}
	return o.body, true
}

func (o *fakeOwner) setBody(b *fakeBody) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.body = b
}

type beamRecord struct {
	from, to mgl64.Vec3
	spec     BeamSpec
}

type fakeEffects struct {
	beams       []beamRecord
	highlights  []ObjectID
	fades       []ObjectID
	removedNow  []ObjectID
	removeAfter []ObjectID
}

func (e *fakeEffects) SpawnBeam(from, to mgl64.Vec3, spec BeamSpec) {
	e.beams = append(e.beams, beamRecord{from: from, to: to, spec: spec})
}
func (e *fakeEffects) Highlight(target ObjectID, _ time.Duration) {
	e.highlights = append(e.highlights, target)
}
func (e *fakeEffects) FadeOut(body ObjectID, _ time.Duration) {
	e.fades = append(e.fades, body)
}
func (e *fakeEffects) RemoveNow(body ObjectID) {
	e.removedNow = append(e.removedNow, body)
}
func (e *fakeEffects) RemoveAfter(body ObjectID, _ time.Duration) {
	e.removeAfter = append(e.removeAfter, body)
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type manualTimer struct {
	at time.Time
	fn func()
}

// manualTimers only fires when the test pumps it.
type manualTimers struct {
	clock   *manualClock
	entries []manualTimer
}

func (m *manualTimers) After(d time.Duration, fn func()) {
	m.entries = append(m.entries, manualTimer{at: m.clock.now.Add(d), fn: fn})
}

func (m *manualTimers) runDue() {
	due := make([]manualTimer, 0)
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !e.at.After(m.clock.now) {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	for _, e := range due {
		e.fn()
	}
}

type funcSub struct {
	once    sync.Once
	release func()
}

func (s *funcSub) Close() { s.once.Do(s.release) }

type fakeFrames struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(time.Time, float64)
}

func newFakeFrames() *fakeFrames {
	return &fakeFrames{subs: make(map[int]func(time.Time, float64))}
}

func (f *fakeFrames) OnFrame(fn func(time.Time, float64)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.subs[id] = fn
	return &funcSub{release: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}}
}

func (f *fakeFrames) fire(now time.Time, dt float64) {
	f.mu.Lock()
	fns := make([]func(time.Time, float64), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(now, dt)
	}
}

func (f *fakeFrames) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeToggles struct {
	mu   sync.Mutex
	subs map[string]func(ActorID)
}

func newFakeToggles() *fakeToggles {
	return &fakeToggles{subs: make(map[string]func(ActorID))}
}

func (f *fakeToggles) OnToggle(droneID string, fn func(ActorID)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[droneID] = fn
	return &funcSub{release: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, droneID)
	}}
}

func (f *fakeToggles) dispatch(droneID string, requester ActorID) {
	f.mu.Lock()
	fn := f.subs[droneID]
	f.mu.Unlock()
	if fn != nil {
		fn(requester)
	}
}

func (f *fakeToggles) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// harness wires a full set of fake collaborators around one drone.
type harness struct {
	world     *fakeWorld
	effects   *fakeEffects
	clock     *manualClock
	timers    *manualTimers
	frames    *fakeFrames
	toggles   *fakeToggles
	owner     *fakeOwner
	ownerBody *fakeBody
	droneBody *fakeBody
	spawnedAt []geom.Pose
	events    []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &manualClock{now: time.Unix(100, 0)}
	ownerBody := newFakeBody("owner-body")
	ownerBody.pose.Position = mgl64.Vec3{0, 1, 0}
	ownerBody.hasLight = false
	ownerBody.fades = false
	h := &harness{
		world:     &fakeWorld{},
		effects:   &fakeEffects{},
		clock:     clock,
		timers:    &manualTimers{clock: clock},
		frames:    newFakeFrames(),
		toggles:   newFakeToggles(),
		ownerBody: ownerBody,
		droneBody: newFakeBody("drone-body"),
	}
	h.owner = &fakeOwner{id: "actor-1", body: ownerBody}
	h.world.events = &h.events
	h.droneBody.events = &h.events
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		World:   h.world,
		Effects: h.effects,
		Clock:   h.clock,
		Timers:  h.timers,
		Frames:  h.frames,
		Toggles: h.toggles,
		SpawnBody: func(pose geom.Pose) (Body, error) {
			h.spawnedAt = append(h.spawnedAt, pose)
			h.droneBody.pose = pose
			return h.droneBody, nil
		},
	}
}

func vecsClose(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() <= tol
}
