// Package entity provides the pure physics value types for a match: the ball
// and the two paddles. Entities hold no locks; the owning session serializes
// all access.
package entity

import (
	"math"
	"math/rand"
)

// Side identifies one of the two paddle positions along the field's depth
// axis. The near side sits at positive Z, the far side at negative Z.
type Side string

const (
	SideNear Side = "near"
	SideFar  Side = "far"
)

// Direction is a paddle movement command along the X axis. The wire values
// are "left" (toward negative X) and "right" (toward positive X).
type Direction string

const (
	MoveLeft  Direction = "left"
	MoveRight Direction = "right"
)

// ValidDirection reports whether d is a recognized movement command.
func ValidDirection(d Direction) bool {
	return d == MoveLeft || d == MoveRight
}

// Ball tuning constants, shared by every session.
const (
	BallRadius         = 0.4
	BallHeight         = 0.4
	BallBaseSpeed      = 0.15
	BallMaxSpeed       = 0.35
	BallSpeedIncrement = 0.01
	spinFactor         = 0.05
)

// Ball is the match ball. Y is a fixed visual height offset; play happens on
// the X/Z plane.
//
// Invariant: |VX| and |VZ| never exceed BallMaxSpeed.
type Ball struct {
	X, Y, Z      float64
	VX, VZ       float64
	Radius       float64
	BaseSpeed    float64
	CurrentSpeed float64
}

// NewBall creates a stationary centered ball. Call Reset to serve it.
func NewBall() *Ball {
	return &Ball{
		Y:            BallHeight,
		Radius:       BallRadius,
		BaseSpeed:    BallBaseSpeed,
		CurrentSpeed: BallBaseSpeed,
	}
}

// Reset recenters the ball and serves it toward the given side with a
// randomized horizontal component.
//
// Postcondition: Z velocity points at serveToward; speed is back to base.
func (b *Ball) Reset(serveToward Side) {
	b.X = 0
	b.Z = 0
	b.CurrentSpeed = b.BaseSpeed

	b.VX = (rand.Float64() - 0.5) * b.CurrentSpeed * 2

	if serveToward == SideNear {
		b.VZ = b.CurrentSpeed
	} else {
		b.VZ = -b.CurrentSpeed
	}
}

// Advance integrates position by velocity for one tick.
func (b *Ball) Advance() {
	b.X += b.VX
	b.Z += b.VZ
}

// ReflectX negates the horizontal velocity (side-wall bounce). Wall bounces
// do not change speed.
func (b *Ball) ReflectX() {
	b.VX = -b.VX
}

// SendToward forces the depth-axis velocity to point at the given side.
// A paddle hit always sends the ball away from the paddle's own side, which
// keeps an embedded ball from reflecting repeatedly.
func (b *Ball) SendToward(s Side) {
	if s == SideNear {
		b.VZ = math.Abs(b.VZ)
	} else {
		b.VZ = -math.Abs(b.VZ)
	}
}

// ApplySpin deflects the ball horizontally based on where it struck the
// paddle, then clamps the horizontal velocity.
//
// Postcondition: |VX| <= BallMaxSpeed.
func (b *Ball) ApplySpin(paddleX float64) {
	b.VX += (b.X - paddleX) * spinFactor
	b.VX = math.Max(-BallMaxSpeed, math.Min(BallMaxSpeed, b.VX))
}

// Accelerate raises the ball speed one increment toward the cap, preserving
// direction. Called on paddle hits only; rallies intensify, wall bounces
// don't.
//
// Postcondition: CurrentSpeed <= BallMaxSpeed; velocity direction unchanged.
func (b *Ball) Accelerate() {
	b.CurrentSpeed = math.Min(BallMaxSpeed, b.CurrentSpeed+BallSpeedIncrement)

	mag := math.Sqrt(b.VX*b.VX + b.VZ*b.VZ)
	if mag == 0 {
		return
	}
	ratio := b.CurrentSpeed / mag
	b.VX *= ratio
	b.VZ *= ratio
}
