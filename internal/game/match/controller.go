package match

import (
	"math"

	"github.com/cory-johannsen/pong/internal/game/entity"
)

// Controller steers one paddle once per tick. Sessions carry a controller
// only for paddles not driven by a player (the computer opponent in solo
// mode).
type Controller interface {
	Steer(ball *entity.Ball, paddle *entity.Paddle)
}

// The computer paddle's bounded step per tick. Slower than the ball can
// drift, so it tracks the ball without playing perfectly.
const aiFollowStep = 0.2

// FollowController moves the paddle toward the ball's horizontal offset by a
// bounded step each tick.
type FollowController struct {
	Step float64
}

// NewFollowController creates a follow controller with the default step.
func NewFollowController() *FollowController {
	return &FollowController{Step: aiFollowStep}
}

// Steer nudges the paddle toward the ball, never overshooting it.
func (c *FollowController) Steer(ball *entity.Ball, paddle *entity.Paddle) {
	diff := ball.X - paddle.X
	step := math.Min(c.Step, math.Abs(diff))
	if diff < 0 {
		step = -step
	}
	paddle.Nudge(step)
}
