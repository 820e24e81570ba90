package drone

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSelectTargetPicksNearestVisible(t *testing.T) {
	w := &fakeWorld{}
	far := w.add("dummy-far", "dummy-far", mgl64.Vec3{0, 0, -20}, 1, true)
	near := w.add("dummy-near", "dummy-near", mgl64.Vec3{0, 0, -10}, 1, true)

	got, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30)
	if !ok {
		t.Fatal("expected a target")
	}
	if got.ID() != near.ID() {
		t.Fatalf("got %s, want %s", got.ID(), near.ID())
	}
	if far.destroyed != 0 || near.destroyed != 0 {
		t.Fatal("selection must not mutate targets")
	}
}

func TestSelectTargetSkipsOccluded(t *testing.T) {
	w := &fakeWorld{}
	w.add("wall", "terrain", mgl64.Vec3{0, 0, -5}, 1, false)
	w.add("dummy-near", "dummy-near", mgl64.Vec3{0, 0, -10}, 1, true)
	far := w.add("dummy-far", "dummy-far", mgl64.Vec3{12, 0, 0}, 1, true)

	got, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30)
	if !ok {
		t.Fatal("expected the unoccluded target")
	}
	if got.ID() != far.ID() {
		t.Fatalf("got %s, want %s", got.ID(), far.ID())
	}
}

func TestSelectTargetNoneQualify(t *testing.T) {
	w := &fakeWorld{}
	if _, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30); ok {
		t.Fatal("empty world must select nothing")
	}

	w.add("wall", "terrain", mgl64.Vec3{0, 0, -5}, 2, false)
	w.add("dummy", "dummy", mgl64.Vec3{0, 0, -10}, 1, true)
	if _, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30); ok {
		t.Fatal("fully occluded world must select nothing")
	}
}

func TestSelectTargetRangeIsExclusive(t *testing.T) {
	w := &fakeWorld{}
	w.add("edge", "edge", mgl64.Vec3{30, 0, 0}, 1, true)
	if _, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30); ok {
		t.Fatal("target exactly at max range must not qualify")
	}

	inside := w.add("inside", "inside", mgl64.Vec3{29.5, 2, 0}, 1, true)
	got, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30)
	if !ok || got.ID() != inside.ID() {
		t.Fatalf("target inside max range must qualify, got %v %v", got, ok)
	}
}

func TestSelectTargetTieKeepsFirst(t *testing.T) {
	w := &fakeWorld{}
	first := w.add("dummy-a", "dummy-a", mgl64.Vec3{10, 0, 0}, 1, true)
	w.add("dummy-b", "dummy-b", mgl64.Vec3{-10, 0, 0}, 1, true)

	got, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30)
	if !ok || got.ID() != first.ID() {
		t.Fatalf("equidistant targets must keep the first found, got %v %v", got, ok)
	}
}

func TestSelectTargetHonorsExclusions(t *testing.T) {
	w := &fakeWorld{}
	self := w.add("drone-body", "drone", mgl64.Vec3{}, 1, false)
	dummy := w.add("dummy", "dummy", mgl64.Vec3{0, 0, -10}, 1, true)

	// The ray starts inside the drone's own body; without the exclusion it
	// occludes everything.
	if _, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30); ok {
		t.Fatal("un-excluded self body must occlude the scan")
	}
	got, ok := SelectTarget(w, mgl64.Vec3{}, []ObjectID{self.ID()}, 30)
	if !ok || got.ID() != dummy.ID() {
		t.Fatalf("excluding the self body must reveal the target, got %v %v", got, ok)
	}
}

func TestSelectTargetIgnoresDead(t *testing.T) {
	w := &fakeWorld{}
	dead := w.add("dummy", "dummy", mgl64.Vec3{0, 0, -10}, 1, true)
	dead.alive = false
	if _, ok := SelectTarget(w, mgl64.Vec3{}, nil, 30); ok {
		t.Fatal("dead targets must not qualify")
	}
}
