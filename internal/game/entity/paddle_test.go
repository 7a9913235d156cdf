package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pong/internal/game/entity"
)

func TestNewPaddle_SidePlacement(t *testing.T) {
	near := entity.NewPaddle("player1", entity.SideNear, 20, 30)
	assert.Equal(t, 14.0, near.Z)
	assert.Zero(t, near.X)
	assert.Zero(t, near.Score)

	far := entity.NewPaddle("player2", entity.SideFar, 20, 30)
	assert.Equal(t, -14.0, far.Z)
}

func TestMove_StepsAndClamps(t *testing.T) {
	p := entity.NewPaddle("player1", entity.SideNear, 20, 30)

	p.Move(entity.MoveRight)
	assert.InDelta(t, entity.PaddleSpeed, p.X, 1e-9)

	p.Move(entity.MoveLeft)
	p.Move(entity.MoveLeft)
	assert.InDelta(t, -entity.PaddleSpeed, p.X, 1e-9)

	for i := 0; i < 100; i++ {
		p.Move(entity.MoveLeft)
	}
	assert.Equal(t, -8.0, p.X)
}

func TestMove_UnknownDirectionIsNoOp(t *testing.T) {
	p := entity.NewPaddle("player1", entity.SideNear, 20, 30)
	p.Move("up")
	p.Move("")
	assert.Zero(t, p.X)
}

func TestReset_RecentersButKeepsScore(t *testing.T) {
	p := entity.NewPaddle("player1", entity.SideNear, 20, 30)
	p.Move(entity.MoveRight)
	p.AddScore()
	p.AddScore()

	p.Reset()
	assert.Zero(t, p.X)
	assert.Equal(t, 2, p.Score)
}

func TestNudge_Clamps(t *testing.T) {
	p := entity.NewPaddle("player2", entity.SideFar, 20, 30)
	p.Nudge(100)
	assert.Equal(t, 8.0, p.X)
	p.Nudge(-0.5)
	assert.Equal(t, 7.5, p.X)
}

func TestValidDirection(t *testing.T) {
	assert.True(t, entity.ValidDirection(entity.MoveLeft))
	assert.True(t, entity.ValidDirection(entity.MoveRight))
	assert.False(t, entity.ValidDirection("up"))
	assert.False(t, entity.ValidDirection(""))
}

func TestPropertyPaddleStaysInBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.Float64Range(6, 100).Draw(t, "fieldWidth")
		p := entity.NewPaddle("player1", entity.SideNear, width, 30)

		moves := rapid.SliceOfN(rapid.Bool(), 0, 200).Draw(t, "moves")
		for _, right := range moves {
			if right {
				p.Move(entity.MoveRight)
			} else {
				p.Move(entity.MoveLeft)
			}
		}

		limit := width/2 - entity.PaddleMargin
		if p.X < -limit-1e-9 || p.X > limit+1e-9 {
			t.Fatalf("paddle at %v escaped bounds ±%v", p.X, limit)
		}
	})
}
