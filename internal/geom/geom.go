// Package geom holds the small set of vector and orientation helpers shared
// by the drone controller and the host world. Positions are world-space
// mgl64.Vec3 values; orientations are quaternions. Yaw is measured around Up
// with zero facing -Z.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Up is the world vertical axis.
var Up = mgl64.Vec3{0, 1, 0}

// Forward is the body-frame forward axis.
var Forward = mgl64.Vec3{0, 0, -1}

// Pose is a position plus an orientation in world space.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// IdentityPose returns a pose at the origin facing -Z.
func IdentityPose() Pose {
	return Pose{Orientation: mgl64.QuatIdent()}
}

// Lerp linearly interpolates between a and b. t is not clamped.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// LocalVelocity expresses a world-space velocity in the body frame of the
// given orientation.
func LocalVelocity(orientation mgl64.Quat, world mgl64.Vec3) mgl64.Vec3 {
	return orientation.Inverse().Rotate(world)
}

// YawQuat builds an orientation rotated yaw radians around Up.
func YawQuat(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, Up)
}

// Yaw extracts the heading of an orientation, projected onto the ground
// plane. Degenerate orientations (facing straight up or down) report zero.
func Yaw(q mgl64.Quat) float64 {
	fwd := q.Rotate(Forward)
	if fwd.X() == 0 && fwd.Z() == 0 {
		return 0
	}
	return math.Atan2(-fwd.X(), -fwd.Z())
}

// LookAt builds a yaw-only orientation at from facing toward to. Points
// stacked vertically produce the identity orientation.
func LookAt(from, to mgl64.Vec3) mgl64.Quat {
	d := to.Sub(from)
	if d.X() == 0 && d.Z() == 0 {
		return mgl64.QuatIdent()
	}
	return YawQuat(math.Atan2(-d.X(), -d.Z()))
}
