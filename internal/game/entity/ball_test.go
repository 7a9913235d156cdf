package entity_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pong/internal/game/entity"
)

func TestNewBall_StationaryAndCentered(t *testing.T) {
	b := entity.NewBall()
	assert.Zero(t, b.X)
	assert.Zero(t, b.Z)
	assert.Zero(t, b.VX)
	assert.Zero(t, b.VZ)
	assert.Equal(t, entity.BallBaseSpeed, b.CurrentSpeed)
	assert.Equal(t, entity.BallRadius, b.Radius)
}

func TestReset_ServesTowardRequestedSide(t *testing.T) {
	b := entity.NewBall()

	b.Reset(entity.SideNear)
	assert.Zero(t, b.X)
	assert.Zero(t, b.Z)
	assert.Equal(t, entity.BallBaseSpeed, b.VZ)

	b.Reset(entity.SideFar)
	assert.Equal(t, -entity.BallBaseSpeed, b.VZ)
}

func TestReset_RestoresBaseSpeed(t *testing.T) {
	b := entity.NewBall()
	b.Reset(entity.SideFar)
	for i := 0; i < 30; i++ {
		b.Accelerate()
	}
	assert.Equal(t, entity.BallMaxSpeed, b.CurrentSpeed)

	b.Reset(entity.SideNear)
	assert.Equal(t, entity.BallBaseSpeed, b.CurrentSpeed)
}

func TestAdvance_IntegratesVelocity(t *testing.T) {
	b := entity.NewBall()
	b.VX = 0.1
	b.VZ = -0.2
	b.Advance()
	b.Advance()
	assert.InDelta(t, 0.2, b.X, 1e-9)
	assert.InDelta(t, -0.4, b.Z, 1e-9)
}

func TestReflectX_NegatesHorizontalVelocity(t *testing.T) {
	b := entity.NewBall()
	b.VX = 0.12
	b.ReflectX()
	assert.Equal(t, -0.12, b.VX)
	b.ReflectX()
	assert.Equal(t, 0.12, b.VX)
}

func TestSendToward_ForcesDepthSign(t *testing.T) {
	b := entity.NewBall()
	b.VZ = -0.2

	b.SendToward(entity.SideNear)
	assert.Equal(t, 0.2, b.VZ)

	// Already pointing near: magnitude untouched.
	b.SendToward(entity.SideNear)
	assert.Equal(t, 0.2, b.VZ)

	b.SendToward(entity.SideFar)
	assert.Equal(t, -0.2, b.VZ)
}

func TestAccelerate_PreservesDirection(t *testing.T) {
	b := entity.NewBall()
	b.Reset(entity.SideFar)
	vxSign := math.Signbit(b.VX)
	b.Accelerate()
	assert.Equal(t, vxSign, math.Signbit(b.VX))
	assert.Negative(t, b.VZ)
	assert.InDelta(t, entity.BallBaseSpeed+entity.BallSpeedIncrement, b.CurrentSpeed, 1e-9)
}

func TestPropertyAccelerateNeverExceedsMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := entity.NewBall()
		b.Reset(entity.SideFar)
		hits := rapid.IntRange(0, 100).Draw(t, "hits")
		for i := 0; i < hits; i++ {
			b.Accelerate()
		}
		mag := math.Sqrt(b.VX*b.VX + b.VZ*b.VZ)
		if mag > entity.BallMaxSpeed+1e-9 {
			t.Fatalf("velocity magnitude %v exceeds cap after %d hits", mag, hits)
		}
		if b.CurrentSpeed > entity.BallMaxSpeed {
			t.Fatalf("current speed %v exceeds cap", b.CurrentSpeed)
		}
	})
}

func TestPropertySpinStaysClamped(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := entity.NewBall()
		b.Reset(entity.SideNear)
		hits := rapid.IntRange(1, 50).Draw(t, "hits")
		for i := 0; i < hits; i++ {
			b.X = rapid.Float64Range(-10, 10).Draw(t, "ballX")
			paddleX := rapid.Float64Range(-8, 8).Draw(t, "paddleX")
			b.ApplySpin(paddleX)
		}
		if math.Abs(b.VX) > entity.BallMaxSpeed {
			t.Fatalf("horizontal velocity %v exceeds cap", b.VX)
		}
	})
}
