// Package camera implements the orbit camera for the cloth viewer.
package camera

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// OrbitCamera circles a fixed target. Right mouse drag orbits, the
// wheel zooms; the left button stays free for grabbing cloth.
type OrbitCamera struct {
	Target    rl.Vector3
	Distance  float32
	Yaw       float32 // degrees
	Pitch     float32 // degrees
	LookSpeed float32
	ZoomSpeed float32
}

func New(target rl.Vector3, distance float32) *OrbitCamera {
	return &OrbitCamera{
		Target:    target,
		Distance:  distance,
		Yaw:       -135.0,
		Pitch:     -30.0,
		LookSpeed: 0.25,
		ZoomSpeed: 0.2,
	}
}

func (c *OrbitCamera) Update() {
	if rl.IsMouseButtonDown(rl.MouseRightButton) {
		mouseDelta := rl.GetMouseDelta()
		c.Yaw += mouseDelta.X * c.LookSpeed
		c.Pitch -= mouseDelta.Y * c.LookSpeed
	}

	// Clamp pitch short of the poles so Up never degenerates
	if c.Pitch > 89 {
		c.Pitch = 89
	}
	if c.Pitch < -89 {
		c.Pitch = -89
	}

	c.Distance -= rl.GetMouseWheelMove() * c.ZoomSpeed
	if c.Distance < 0.3 {
		c.Distance = 0.3
	}
	if c.Distance > 20 {
		c.Distance = 20
	}
}

func (c *OrbitCamera) GetRaylibCamera() rl.Camera3D {
	yawRad := float64(c.Yaw) * math.Pi / 180
	pitchRad := float64(c.Pitch) * math.Pi / 180

	position := rl.Vector3{
		X: c.Target.X + c.Distance*float32(math.Cos(yawRad)*math.Cos(pitchRad)),
		Y: c.Target.Y - c.Distance*float32(math.Sin(pitchRad)),
		Z: c.Target.Z + c.Distance*float32(math.Sin(yawRad)*math.Cos(pitchRad)),
	}

	return rl.Camera3D{
		Position:   position,
		Target:     c.Target,
		Up:         rl.Vector3{X: 0, Y: 1, Z: 0},
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}
}
