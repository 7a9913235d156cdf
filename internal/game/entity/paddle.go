package entity

// Paddle tuning constants.
const (
	PaddleWidth   = 4.0
	PaddleDepth   = 0.8
	PaddleSpeed   = 0.3
	PaddleMargin  = 2.0
	PaddleHeight  = 0.4
	baselineInset = 1.0
)

// Paddle is one player's paddle. X is the offset along the move axis; Z is
// fixed by the paddle's side and the field depth.
//
// Invariant: X stays within [-fieldWidth/2+PaddleMargin, fieldWidth/2-PaddleMargin].
type Paddle struct {
	ID     string
	Side   Side
	X, Y   float64
	Z      float64
	Width  float64
	Height float64
	Speed  float64
	Score  int

	fieldWidth float64
}

// NewPaddle creates a centered paddle for the given side.
//
// Precondition: id must be non-empty; fieldWidth and fieldDepth must be > 0.
func NewPaddle(id string, side Side, fieldWidth, fieldDepth float64) *Paddle {
	z := fieldDepth/2 - baselineInset
	if side == SideFar {
		z = -fieldDepth/2 + baselineInset
	}
	return &Paddle{
		ID:         id,
		Side:       side,
		Y:          PaddleHeight,
		Z:          z,
		Width:      PaddleWidth,
		Height:     PaddleDepth,
		Speed:      PaddleSpeed,
		fieldWidth: fieldWidth,
	}
}

// Move shifts the paddle one step in the given direction and clamps it to
// the field bounds. An unrecognized direction is a silent no-op.
func (p *Paddle) Move(dir Direction) {
	switch dir {
	case MoveLeft:
		p.X -= p.Speed
	case MoveRight:
		p.X += p.Speed
	default:
		return
	}
	p.clamp()
}

// Nudge shifts the paddle by an arbitrary delta and clamps it. Used by the
// AI controller, which moves in bounded steps rather than full ones.
func (p *Paddle) Nudge(delta float64) {
	p.X += delta
	p.clamp()
}

// Reset recenters the paddle. The score is untouched.
func (p *Paddle) Reset() {
	p.X = 0
}

// AddScore increments the paddle owner's score.
func (p *Paddle) AddScore() {
	p.Score++
}

func (p *Paddle) clamp() {
	min := -p.fieldWidth/2 + PaddleMargin
	max := p.fieldWidth/2 - PaddleMargin
	if p.X < min {
		p.X = min
	}
	if p.X > max {
		p.X = max
	}
}
