// Package match implements the per-match session engine: the lifecycle state
// machine, the fixed-timestep simulation loop, collision and scoring rules,
// and state broadcast to the bound connection handles.
package match

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pong/internal/game/conn"
	"github.com/cory-johannsen/pong/internal/game/entity"
	"github.com/cory-johannsen/pong/internal/protocol"
)

// Mode selects how a session is driven: two local players on one connection,
// one player against the computer, or two matchmade remote players.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeSolo   Mode = "solo"
	ModeRemote Mode = "remote"
)

// ValidMode reports whether m is a recognized game mode.
func ValidMode(m Mode) bool {
	return m == ModeLocal || m == ModeSolo || m == ModeRemote
}

// State is a session lifecycle phase. Transitions are monotonic except for
// the playing↔paused flip around each goal.
type State string

const (
	StateWaiting State = "waiting"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// EndReason records why a session ended.
type EndReason string

const (
	ReasonScore      EndReason = "score"
	ReasonTimeout    EndReason = "timeout"
	ReasonDisconnect EndReason = "disconnect"
	ReasonError      EndReason = "error"
)

// Player identifiers. Player one always holds the near side, player two the
// far side.
const (
	Player1 = "player1"
	Player2 = "player2"

	// WinnerDraw is reported when a timed-out match has equal scores.
	WinnerDraw = "draw"
)

// Settings holds the per-match tuning a session is created with.
type Settings struct {
	FieldWidth float64
	FieldDepth float64
	MaxScore   int
	TickRate   int
	GoalPause  time.Duration
	TimeLimit  time.Duration
}

// DefaultSettings returns the standard match configuration.
func DefaultSettings() Settings {
	return Settings{
		FieldWidth: 20,
		FieldDepth: 30,
		MaxScore:   5,
		TickRate:   60,
		GoalPause:  time.Second,
		TimeLimit:  3 * time.Minute,
	}
}

// Session owns the complete state of one match. All mutable state is guarded
// by a single mutex; the tick loop, input application, timers, and disconnect
// handling all serialize through it.
type Session struct {
	id       string
	mode     Mode
	settings Settings
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	winner    string
	endReason EndReason
	ball      *entity.Ball
	player1   *entity.Paddle
	player2   *entity.Paddle
	handles   map[string]*conn.Handle // player id → handle
	ready     map[string]bool         // handle ids that signaled ready
	started   time.Time
	ai        Controller
	resume    *Timer
	onEnd     func(*Session)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSession creates a session in the waiting state. Solo sessions get a
// computer controller for the far paddle.
//
// Precondition: mode must be valid; settings must have positive dimensions
// and tick rate; logger must be non-nil.
func NewSession(mode Mode, settings Settings, logger *zap.Logger) *Session {
	s := &Session{
		id:       fmt.Sprintf("%s_%s", mode, uuid.NewString()),
		mode:     mode,
		settings: settings,
		logger:   logger,
		state:    StateWaiting,
		ball:     entity.NewBall(),
		player1:  entity.NewPaddle(Player1, entity.SideNear, settings.FieldWidth, settings.FieldDepth),
		player2:  entity.NewPaddle(Player2, entity.SideFar, settings.FieldWidth, settings.FieldDepth),
		handles:  make(map[string]*conn.Handle),
		ready:    make(map[string]bool),
		stop:     make(chan struct{}),
	}
	if mode == ModeSolo {
		s.ai = NewFollowController()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the session's game mode.
func (s *Session) Mode() Mode { return s.mode }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Winner returns the winning player id, WinnerDraw, or "" if undecided.
func (s *Session) Winner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner
}

// Reason returns why the session ended, or "" while it is live.
func (s *Session) Reason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

// SetOnEnd registers a callback invoked once, asynchronously, when the
// session reaches the ended state for any reason.
//
// Precondition: Must be called before the session starts.
func (s *Session) SetOnEnd(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = fn
}

// Bind associates a connection handle with a player id. In local and solo
// modes a single handle bound as player one drives the whole session.
func (s *Session) Bind(playerID string, h *conn.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[playerID] = h
}

// PlayerIDForHandle returns the player id a handle is bound as.
//
// Postcondition: Returns (playerID, true) if bound, or ("", false) otherwise.
func (s *Session) PlayerIDForHandle(handleID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for playerID, h := range s.handles {
		if h.ID() == handleID {
			return playerID, true
		}
	}
	return "", false
}

// HasHandle reports whether the given connection is bound to this session.
func (s *Session) HasHandle(handleID string) bool {
	_, ok := s.PlayerIDForHandle(handleID)
	return ok
}

// MarkReady records a ready signal from a handle. The session starts once
// the required count is reached: one handle for local and solo, both for
// remote. Ready signals outside the waiting state are ignored.
func (s *Session) MarkReady(h *conn.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWaiting {
		return
	}
	s.ready[h.ID()] = true

	need := 1
	if s.mode == ModeRemote {
		need = 2
	}
	if len(s.ready) >= need {
		s.startLocked()
	}
}

// startLocked transitions waiting → playing and spawns the tick loop.
// Starting an already-started session is a no-op: at most one tick loop ever
// runs per session.
func (s *Session) startLocked() {
	if s.state != StateWaiting {
		return
	}
	s.state = StatePlaying
	s.started = time.Now()
	s.ball.Reset(entity.SideFar)
	s.player1.Reset()
	s.player2.Reset()

	go s.run()

	s.logger.Info("game started",
		zap.String("game_id", s.id),
		zap.String("mode", string(s.mode)),
	)
}

func (s *Session) run() {
	ticker := time.NewTicker(time.Second / time.Duration(s.settings.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

// tick executes one fixed-timestep update. A panic inside the simulation is
// contained to this session: it is recovered and converted into an ended
// transition with reason error.
func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick failed",
				zap.String("game_id", s.id),
				zap.Any("panic", r),
			)
			s.endLocked(ReasonError, "")
		}
	}()

	switch s.state {
	case StatePaused:
		// Physics and scoring are suspended during the goal pause, but
		// clients keep receiving state.
		s.broadcastLocked(protocol.TypeUpdate, s.snapshotLocked())
		return
	case StatePlaying:
	default:
		return
	}

	if s.settings.TimeLimit > 0 && time.Since(s.started) >= s.settings.TimeLimit {
		s.endLocked(ReasonTimeout, s.leaderLocked())
		return
	}

	if s.ai != nil {
		s.ai.Steer(s.ball, s.player2)
	}

	s.ball.Advance()
	s.wallBounceLocked()
	s.paddleBounceLocked(s.player1)
	s.paddleBounceLocked(s.player2)

	if s.resolveScoringLocked() {
		return
	}

	s.broadcastLocked(protocol.TypeUpdate, s.snapshotLocked())
}

func (s *Session) wallBounceLocked() {
	halfWidth := s.settings.FieldWidth / 2
	if s.ball.X <= -halfWidth+s.ball.Radius && s.ball.VX < 0 {
		s.ball.ReflectX()
	}
	if s.ball.X >= halfWidth-s.ball.Radius && s.ball.VX > 0 {
		s.ball.ReflectX()
	}
}

func (s *Session) paddleBounceLocked(p *entity.Paddle) {
	ball := s.ball
	withinX := ball.X > p.X-p.Width/2-ball.Radius && ball.X < p.X+p.Width/2+ball.Radius
	withinZ := ball.Z >= p.Z-p.Height/2-ball.Radius && ball.Z <= p.Z+p.Height/2+ball.Radius
	if !withinX || !withinZ {
		return
	}

	// Always send the ball away from the struck paddle's side so an
	// embedded ball cannot reflect twice.
	if p.Side == entity.SideNear {
		ball.SendToward(entity.SideFar)
	} else {
		ball.SendToward(entity.SideNear)
	}
	ball.ApplySpin(p.X)
	ball.Accelerate()
}

// resolveScoringLocked checks the end walls and handles a goal. Returns true
// if a goal occurred (the tick's broadcast is then owned by the goal path).
func (s *Session) resolveScoringLocked() bool {
	halfDepth := s.settings.FieldDepth / 2

	var scorer *entity.Paddle
	var conceded entity.Side
	switch {
	case s.ball.Z > halfDepth:
		scorer, conceded = s.player2, entity.SideNear
	case s.ball.Z < -halfDepth:
		scorer, conceded = s.player1, entity.SideFar
	default:
		return false
	}

	scorer.AddScore()
	s.logger.Debug("goal",
		zap.String("game_id", s.id),
		zap.String("scorer", scorer.ID),
	)
	s.broadcastLocked(protocol.TypeGoal, protocol.Goal{
		Scorer: scorer.ID,
		Scores: s.scoresLocked(),
	})

	if scorer.Score >= s.settings.MaxScore {
		s.endLocked(ReasonScore, scorer.ID)
		return true
	}

	// Short pause so clients can show the goal, then re-serve toward the
	// side that conceded.
	s.state = StatePaused
	serve := conceded
	s.resume = NewTimer(s.settings.GoalPause, func() {
		s.resumeAfterGoal(serve)
	})
	return true
}

// resumeAfterGoal flips paused → playing once the goal pause elapses. If the
// session ended during the pause (disconnect, shutdown) the resume is
// abandoned.
func (s *Session) resumeAfterGoal(serve entity.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaused {
		return
	}
	s.ball.Reset(serve)
	s.player1.Reset()
	s.player2.Reset()
	s.state = StatePlaying
}

// HandleInput applies a movement command to the matching paddle. Input is
// accepted only while playing; anything else, including input during the
// goal pause, is deliberately ignored.
func (s *Session) HandleInput(playerID string, dir entity.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying {
		return
	}
	switch playerID {
	case Player1:
		s.player1.Move(dir)
	case Player2:
		s.player2.Move(dir)
	}
}

// HandleDisconnect ends the session because a bound connection dropped. In
// remote mode the remaining player is awarded the win and notified; a
// single-connection session just ends. Signals for unknown handles or
// already-ended sessions are ignored, so near-simultaneous closures produce
// exactly one end event.
func (s *Session) HandleDisconnect(handleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return
	}

	var gone string
	for playerID, h := range s.handles {
		if h.ID() == handleID {
			gone = playerID
			break
		}
	}
	if gone == "" {
		return
	}

	if s.mode == ModeRemote {
		winner := Player1
		if gone == Player1 {
			winner = Player2
		}
		if other, ok := s.handles[winner]; ok {
			_ = other.Send(protocol.TypeOpponentDisconnected, protocol.OpponentDisconnected{
				Message: "Your opponent has disconnected",
				Winner:  winner,
			})
		}
		delete(s.handles, gone)
		s.endLocked(ReasonDisconnect, winner)
		return
	}

	delete(s.handles, gone)
	s.endLocked(ReasonDisconnect, "")
}

// Stop halts the tick loop and timers without emitting a game end
// notification. Used when a session is torn down administratively (restart,
// server shutdown). Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resume != nil {
		s.resume.Stop()
	}
	s.state = StateEnded
	s.stopOnce.Do(func() { close(s.stop) })
}

// endLocked performs the terminal transition: freeze state, stop the loop
// and timers, notify every bound handle, fire the end callback. Ending an
// already-ended session is a no-op.
func (s *Session) endLocked(reason EndReason, winner string) {
	if s.state == StateEnded {
		return
	}
	s.state = StateEnded
	s.winner = winner
	s.endReason = reason
	if s.resume != nil {
		s.resume.Stop()
	}
	s.stopOnce.Do(func() { close(s.stop) })

	s.broadcastLocked(protocol.TypeGameEnd, protocol.GameEnd{
		Winner:     winner,
		Reason:     string(reason),
		FinalScore: s.scoresLocked(),
	})

	s.logger.Info("game ended",
		zap.String("game_id", s.id),
		zap.String("winner", winner),
		zap.String("reason", string(reason)),
	)

	if s.onEnd != nil {
		fn := s.onEnd
		s.onEnd = nil
		go fn(s)
	}
}

// leaderLocked decides a timeout winner: higher score, or a draw on a tie.
func (s *Session) leaderLocked() string {
	switch {
	case s.player1.Score > s.player2.Score:
		return Player1
	case s.player2.Score > s.player1.Score:
		return Player2
	default:
		return WinnerDraw
	}
}

func (s *Session) scoresLocked() protocol.Scores {
	return protocol.Scores{
		Player1: s.player1.Score,
		Player2: s.player2.Score,
	}
}

// broadcastLocked pushes a message to every bound handle, fire-and-forget.
// A slow or closed handle is skipped, never awaited.
func (s *Session) broadcastLocked(msgType string, payload any) {
	for _, h := range s.handles {
		_ = h.Send(msgType, payload)
	}
}

// Snapshot returns the full session state in wire form.
func (s *Session) Snapshot() protocol.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() protocol.Snapshot {
	var elapsed, remaining float64
	if !s.started.IsZero() {
		elapsed = time.Since(s.started).Seconds()
		if s.settings.TimeLimit > 0 {
			remaining = s.settings.TimeLimit.Seconds() - elapsed
			if remaining < 0 {
				remaining = 0
			}
		}
	}

	return protocol.Snapshot{
		GameID:        s.id,
		Mode:          string(s.mode),
		Player1:       paddleState(s.player1),
		Player2:       paddleState(s.player2),
		Ball:          ballState(s.ball),
		FieldWidth:    s.settings.FieldWidth,
		FieldDepth:    s.settings.FieldDepth,
		State:         string(s.state),
		Winner:        s.winner,
		Elapsed:       elapsed,
		TimeRemaining: remaining,
	}
}

func paddleState(p *entity.Paddle) protocol.PaddleState {
	return protocol.PaddleState{
		ID:     p.ID,
		Side:   string(p.Side),
		X:      p.X,
		Y:      p.Y,
		Z:      p.Z,
		Width:  p.Width,
		Height: p.Height,
		Score:  p.Score,
	}
}

func ballState(b *entity.Ball) protocol.BallState {
	return protocol.BallState{
		X:      b.X,
		Y:      b.Y,
		Z:      b.Z,
		VX:     b.VX,
		VZ:     b.VZ,
		Radius: b.Radius,
		Speed:  b.CurrentSpeed,
	}
}
