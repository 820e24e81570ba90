package drone

import (
	"github.com/go-gl/mathgl/mgl64"

	"sky-sentry/server/internal/geom"
)

// TiltSensitivity converts local-frame speed into banking radians.
const TiltSensitivity = 0.05

var (
	pitchAxis = mgl64.Vec3{1, 0, 0}
	rollAxis  = mgl64.Vec3{0, 0, -1}
)

// FlightCommand is one frame's pose command for the body actuator.
type FlightCommand struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// TiltAngles maps a world-space velocity to the banking pitch and roll for a
// body with the given orientation. Forward local speed pitches the nose
// down, lateral local speed rolls into the turn, and both are clamped to
// maxTilt so no finite velocity can flip the body.
func TiltAngles(orientation mgl64.Quat, velocity mgl64.Vec3, maxTilt float64) (pitch, roll float64) {
	local := geom.LocalVelocity(orientation, velocity)
	forward := -local.Z()
	lateral := local.X()
	pitch = mgl64.Clamp(forward*TiltSensitivity, -maxTilt, maxTilt)
	roll = mgl64.Clamp(-lateral*TiltSensitivity, -maxTilt, maxTilt)
	return pitch, roll
}

// ComputeFlightCommand derives the banking pose command for one frame. The
// desired position passes through untouched; the downstream actuator eases
// toward it. The orientation combines the desired yaw with the clamped tilt
// so the body keeps its heading while banking in the direction of travel.
func ComputeFlightCommand(body geom.Pose, velocity mgl64.Vec3, desired mgl64.Vec3, yaw float64, maxTilt float64) FlightCommand {
	pitch, roll := TiltAngles(body.Orientation, velocity, maxTilt)
	orientation := geom.YawQuat(yaw).
		Mul(mgl64.QuatRotate(pitch, pitchAxis)).
		Mul(mgl64.QuatRotate(roll, rollAxis))
	return FlightCommand{Position: desired, Orientation: orientation}
}
