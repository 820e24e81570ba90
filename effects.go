package main

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"sky-sentry/server/internal/drone"
	"sky-sentry/server/internal/geom"
)

const (
	effectTypeBeam      = "beam"
	effectTypeHighlight = "highlight"
	effectTypeFade      = "fade"
)

// Effect is a time-limited visual broadcast to clients.
type Effect struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Target   string       `json:"target,omitempty"`
	Points   [][3]float64 `json:"points,omitempty"`
	Start    int64        `json:"start"`
	Duration int64        `json:"duration"`
}

type effectState struct {
	Effect
	expiresAt time.Time
}

// effectLog implements drone.Effects against the host world and timer queue.
// Records live until their deadline and are pruned every frame.
type effectLog struct {
	mu      sync.Mutex
	world   *World
	timers  *timerQueue
	clock   *frameClock
	rng     *rand.Rand
	effects []*effectState
}

func newEffectLog(world *World, timers *timerQueue, clock *frameClock, seed int64) *effectLog {
	return &effectLog{
		world:  world,
		timers: timers,
		clock:  clock,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SpawnBeam records a segmented bolt between the muzzle and the target. The
// endpoints are exact; interior points wander by at most the jitter
// magnitude.
func (e *effectLog) SpawnBeam(from, to mgl64.Vec3, spec drone.BeamSpec) {
	e.mu.Lock()
	points := beamPoints(e.rng, from, to, spec.Segments, spec.Jitter)
	e.mu.Unlock()
	e.push(effectTypeBeam, "", points, spec.Duration)
}

// Highlight flags a target for the duration of the incoming attack.
func (e *effectLog) Highlight(target drone.ObjectID, d time.Duration) {
	e.push(effectTypeHighlight, string(target), nil, d)
}

// FadeOut transitions a body to invisible over the duration.
func (e *effectLog) FadeOut(body drone.ObjectID, d time.Duration) {
	e.world.beginFade(string(body), d)
	e.push(effectTypeFade, string(body), nil, d)
}

// RemoveNow deletes a body immediately.
func (e *effectLog) RemoveNow(body drone.ObjectID) {
	e.world.Remove(string(body))
}

// RemoveAfter deletes a body once the delay elapses.
func (e *effectLog) RemoveAfter(body drone.ObjectID, d time.Duration) {
	id := string(body)
	e.timers.After(d, func() {
		e.world.Remove(id)
	})
}

func (e *effectLog) push(kind, target string, points [][3]float64, d time.Duration) {
	now := e.clock.Now()
	state := &effectState{
		Effect: Effect{
			ID:       uuid.NewString(),
			Type:     kind,
			Target:   target,
			Points:   points,
			Start:    now.UnixMilli(),
			Duration: d.Milliseconds(),
		},
		expiresAt: now.Add(d),
	}
	e.mu.Lock()
	e.effects = append(e.effects, state)
	e.mu.Unlock()
}

// prune drops effects whose deadline has passed.
func (e *effectLog) prune(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.effects[:0]
	for _, state := range e.effects {
		if state.expiresAt.After(now) {
			kept = append(kept, state)
		}
	}
	for i := len(kept); i < len(e.effects); i++ {
		e.effects[i] = nil
	}
	e.effects = kept
}

// snapshot lists the live effects for a state broadcast.
func (e *effectLog) snapshot() []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()
	views := make([]Effect, 0, len(e.effects))
	for _, state := range e.effects {
		views = append(views, state.Effect)
	}
	return views
}

// beamPoints samples segments+1 points along the bolt. Interior points get a
// random offset of magnitude below jitter.
func beamPoints(rng *rand.Rand, from, to mgl64.Vec3, segments int, jitter float64) [][3]float64 {
	if segments < 1 {
		segments = 1
	}
	points := make([][3]float64, 0, segments+1)
	for i := 0; i <= segments; i++ {
		p := geom.Lerp(from, to, float64(i)/float64(segments))
		if i > 0 && i < segments && jitter > 0 {
			p = p.Add(randomUnit(rng).Mul(rng.Float64() * jitter))
		}
		points = append(points, vec3Array(p))
	}
	return points
}

func randomUnit(rng *rand.Rand) mgl64.Vec3 {
	theta := rng.Float64() * 2 * math.Pi
	z := rng.Float64()*2 - 1
	r := math.Sqrt(1 - z*z)
	return mgl64.Vec3{r * math.Cos(theta), r * math.Sin(theta), z}
}
