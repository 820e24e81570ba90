package drone

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// sequencer drives the cooldown-gated attack cycle. Within one tick the
// cycle runs cooldown -> scanning -> engaging; the destructive resolution is
// scheduled for when the visual effect ends and never blocks the cycle.
type sequencer struct {
	cfg    Config
	deps   Deps
	active func() bool

	// lastFire is the start of the most recent engagement. The zero value is
	// the sentinel that lets the first shot fire immediately.
	lastFire time.Time

	// pending counts engagements whose resolution has not run yet. State
	// snapshots read it off the simulation goroutine, so it carries its own
	// lock.
	mu      sync.Mutex
	pending int
}

func newSequencer(cfg Config, deps Deps, active func() bool) *sequencer {
	return &sequencer{cfg: cfg, deps: deps, active: active}
}

// Tick runs one cooldown/scan/engage pass firing from origin. Once the
// cooldown has elapsed the scan repeats every tick until a target qualifies.
func (s *sequencer) Tick(now time.Time, origin mgl64.Vec3, exclude []ObjectID) {
	if !s.lastFire.IsZero() && now.Sub(s.lastFire) <= s.cfg.FireInterval {
		return
	}
	target, ok := SelectTarget(s.deps.World, origin, exclude, s.cfg.MaxRange)
	if !ok {
		return
	}
	s.engage(now, origin, target)
}

func (s *sequencer) engage(now time.Time, origin mgl64.Vec3, target Target) {
	// The cooldown re-arms at engagement start, so FireInterval bounds the
	// rate of engagement starts regardless of the effect duration.
	s.lastFire = now
	s.deps.Effects.SpawnBeam(origin, target.Position(), BeamSpec{
		Duration: s.cfg.EffectDuration,
		Segments: s.cfg.EffectSegments,
		Jitter:   s.cfg.JitterMagnitude,
	})
	s.deps.Effects.Highlight(target.ID(), s.cfg.EffectDuration)
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	s.deps.Timers.After(s.cfg.EffectDuration, func() {
		s.resolve(target)
	})
}

// resolve applies the destructive outcome once the visual effect has run its
// course. A target gone by then counts as already resolved, and a drone torn
// down in the meantime leaves the target alone.
func (s *sequencer) resolve(target Target) {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	s.mu.Unlock()
	if s.active != nil && !s.active() {
		return
	}
	if target == nil || !target.Alive() {
		return
	}
	target.Destroy()
}

// Pending reports the number of unresolved engagements. Safe from any
// goroutine.
func (s *sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
