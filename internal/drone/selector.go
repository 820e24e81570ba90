package drone

import "github.com/go-gl/mathgl/mgl64"

// SelectTarget scans every tagged candidate and returns the closest one with
// an unobstructed line of sight from origin. A candidate qualifies only when
// the first object struck by a ray from origin toward it belongs to the
// candidate's own group; anything else in the way occludes it. Exact
// distance ties keep the first candidate found. The scan is read-only and
// reports false when nothing within maxRange qualifies.
func SelectTarget(world WorldQuery, origin mgl64.Vec3, exclude []ObjectID, maxRange float64) (Target, bool) {
	if world == nil {
		return nil, false
	}
	var best Target
	bestRange := maxRange
	for _, candidate := range world.Targets() {
		if candidate == nil || !candidate.Alive() {
			continue
		}
		dist := candidate.Position().Sub(origin).Len()
		if dist >= bestRange {
			continue
		}
		hit, ok := world.Raycast(origin, candidate.Position(), exclude)
		if !ok || hit.Group != candidate.Group() {
			continue
		}
		bestRange = dist
		best = candidate
	}
	if best == nil {
		return nil, false
	}
	return best, true
}
