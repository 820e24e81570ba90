package main

import (
	"context"
	"sync"
	"time"

	"sky-sentry/server/internal/drone"
)

// busSubscription unregisters its callback exactly once.
type busSubscription struct {
	once    sync.Once
	release func()
}

func (s *busSubscription) Close() {
	s.once.Do(s.release)
}

// frameBus fans the per-frame callback out to subscribed drones. Callbacks
// run without the bus lock held, so a callback may subscribe or unsubscribe.
type frameBus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(now time.Time, dt float64)
}

func newFrameBus() *frameBus {
	return &frameBus{subs: make(map[uint64]func(time.Time, float64))}
}

func (b *frameBus) OnFrame(fn func(now time.Time, dt float64)) drone.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	return &busSubscription{release: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}}
}

func (b *frameBus) fire(now time.Time, dt float64) {
	b.mu.Lock()
	callbacks := make([]func(time.Time, float64), 0, len(b.subs))
	for _, fn := range b.subs {
		callbacks = append(callbacks, fn)
	}
	b.mu.Unlock()
	for _, fn := range callbacks {
		fn(now, dt)
	}
}

func (b *frameBus) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// toggleBus routes remote light-toggle requests to the drone they address.
// The owner check happens inside the drone, not here.
type toggleBus struct {
	mu   sync.Mutex
	subs map[string]func(requester drone.ActorID)
}

func newToggleBus() *toggleBus {
	return &toggleBus{subs: make(map[string]func(drone.ActorID))}
}

func (b *toggleBus) OnToggle(droneID string, fn func(requester drone.ActorID)) drone.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[droneID] = fn
	return &busSubscription{release: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, droneID)
	}}
}

func (b *toggleBus) dispatch(droneID string, requester drone.ActorID) {
	b.mu.Lock()
	fn := b.subs[droneID]
	b.mu.Unlock()
	if fn != nil {
		fn(requester)
	}
}

// RunSimulation advances frames at the configured tick rate until the
// context is cancelled.
func (h *Hub) RunSimulation(ctx context.Context) {
	interval := time.Second / time.Duration(h.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(h.cfg.TickRate)
			}
			last = now
			h.advance(now, dt)
		}
	}
}

// advance runs one frame: commands first, then host-side integration, then
// due timers, then drone ticks, then effect pruning and the state broadcast.
// Drone ticks run after integration so targeting sees this frame's
// positions.
func (h *Hub) advance(now time.Time, dt float64) {
	h.clock.advance(now)
	for _, cmd := range h.drainCommands() {
		h.applyCommand(cmd)
	}
	h.world.Integrate(dt)
	h.timers.pump(now)
	h.frames.fire(now, dt)
	h.effects.prune(now)
	h.broadcastState()
}
