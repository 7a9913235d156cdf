// Package gameserver implements the connection coordinator: the registry
// mapping each connection handle to its mode and session, the dispatcher
// routing inbound commands to the matchmaking queue or the bound session,
// and the single-shot cleanup path for disconnects.
package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pong/internal/game/conn"
	"github.com/cory-johannsen/pong/internal/game/entity"
	"github.com/cory-johannsen/pong/internal/game/match"
	"github.com/cory-johannsen/pong/internal/game/matchmaking"
	"github.com/cory-johannsen/pong/internal/protocol"
)

// binding records what a connection is currently doing.
type binding struct {
	mode     match.Mode
	session  *match.Session
	playerID string
}

// Coordinator owns the connection registry and the matchmaking queue. All
// registry mutations are serialized through one mutex; sessions guard their
// own state.
type Coordinator struct {
	settings match.Settings
	queue    *matchmaking.Queue
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[string]*binding // handle id → binding
}

// NewCoordinator creates a Coordinator with its own matchmaking queue.
//
// Precondition: queueTimeout > 0; logger must be non-nil.
func NewCoordinator(settings match.Settings, queueTimeout time.Duration, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		settings: settings,
		queue:    matchmaking.NewQueue(settings, queueTimeout, logger),
		logger:   logger,
		clients:  make(map[string]*binding),
	}
	c.queue.SetOnGameEnd(c.onSessionEnd)
	return c
}

// Queue exposes the coordinator's matchmaking queue.
func (c *Coordinator) Queue() *matchmaking.Queue {
	return c.queue
}

// Register adds a new connection to the registry and greets it.
func (c *Coordinator) Register(h *conn.Handle) {
	c.mu.Lock()
	c.clients[h.ID()] = &binding{}
	total := len(c.clients)
	c.mu.Unlock()

	_ = h.Send(protocol.TypeConnected, protocol.Connected{
		ConnectionID: h.ID(),
		Timestamp:    time.Now().UnixMilli(),
	})
	c.logger.Info("client registered",
		zap.String("conn_id", h.ID()),
		zap.Int("active_connections", total),
	)
}

// Dispatch routes one inbound envelope. Malformed or unrecognized messages
// are answered with an error and never tear down the connection.
func (c *Coordinator) Dispatch(h *conn.Handle, env protocol.Envelope) {
	c.mu.Lock()
	b, ok := c.clients[h.ID()]
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("message from unregistered connection",
			zap.String("conn_id", h.ID()),
			zap.String("type", env.Type),
		)
		return
	}

	switch env.Type {
	case protocol.TypeSelectMode:
		c.handleSelectMode(h, b, env)
	case protocol.TypeReady:
		c.handleReady(h, b)
	case protocol.TypeReadyRemote:
		c.handleReadyRemote(h, b, env)
	case protocol.TypeInput:
		c.handleInput(h, b, env)
	case protocol.TypeLeaveQueue:
		c.handleLeaveQueue(h, b)
	case protocol.TypeRestartGame:
		c.handleRestart(h, b)
	case protocol.TypePing:
		_ = h.Send(protocol.TypePong, protocol.Pong{Timestamp: time.Now().UnixMilli()})
	default:
		c.logger.Warn("unknown message type",
			zap.String("conn_id", h.ID()),
			zap.String("type", env.Type),
		)
		_ = h.Send(protocol.TypeError, protocol.Error{Message: "Unknown message type"})
	}
}

func (c *Coordinator) handleSelectMode(h *conn.Handle, b *binding, env protocol.Envelope) {
	var req protocol.SelectMode
	if err := env.Decode(&req); err != nil {
		_ = h.Send(protocol.TypeError, protocol.Error{Message: "Invalid message format"})
		return
	}
	mode := match.Mode(req.Mode)
	if !match.ValidMode(mode) {
		_ = h.Send(protocol.TypeError, protocol.Error{Message: "Invalid game mode"})
		return
	}

	c.mu.Lock()
	if b.session != nil && b.session.State() != match.StateEnded {
		c.mu.Unlock()
		_ = h.Send(protocol.TypeError, protocol.Error{Message: "Already in a game"})
		return
	}
	b.mode = mode
	c.mu.Unlock()

	if mode == match.ModeRemote {
		c.queue.Enqueue(h)
		return
	}
	// Switching to a single-connection mode abandons any pending queue
	// entry, so a handle playing local cannot also be matched remotely.
	c.queue.Dequeue(h)
	c.createGame(h, b, mode)
}

// createGame builds a local or solo session driven entirely by one handle
// bound as player one.
func (c *Coordinator) createGame(h *conn.Handle, b *binding, mode match.Mode) {
	s := match.NewSession(mode, c.settings, c.logger)
	s.SetOnEnd(c.onSessionEnd)
	s.Bind(match.Player1, h)

	c.mu.Lock()
	b.mode = mode
	b.session = s
	b.playerID = match.Player1
	c.mu.Unlock()

	_ = h.Send(protocol.TypeGameCreated, protocol.GameCreated{
		GameID:       s.ID(),
		Mode:         string(mode),
		PlayerID:     match.Player1,
		InitialState: s.Snapshot(),
	})
	c.logger.Info("game created",
		zap.String("game_id", s.ID()),
		zap.String("mode", string(mode)),
		zap.String("conn_id", h.ID()),
	)
}

func (c *Coordinator) handleReady(h *conn.Handle, b *binding) {
	c.mu.Lock()
	s := b.session
	c.mu.Unlock()
	if s == nil {
		c.logger.Debug("ready without a game", zap.String("conn_id", h.ID()))
		return
	}
	s.MarkReady(h)
	_ = h.Send(protocol.TypeGameStarting, protocol.GameStarting{
		Message:   "Starting in 2 seconds...",
		Countdown: 2,
	})
}

func (c *Coordinator) handleReadyRemote(h *conn.Handle, b *binding, env protocol.Envelope) {
	var req protocol.ReadyRemote
	if err := env.Decode(&req); err != nil || req.GameID == "" || req.PlayerID == "" {
		c.logger.Debug("invalid readyRemote payload", zap.String("conn_id", h.ID()))
		return
	}

	s, ok := c.queue.Game(req.GameID)
	if !ok {
		_ = h.Send(protocol.TypeError, protocol.Error{Message: "Game not found"})
		return
	}
	boundAs, ok := s.PlayerIDForHandle(h.ID())
	if !ok || boundAs != req.PlayerID {
		c.logger.Warn("readyRemote player mismatch",
			zap.String("conn_id", h.ID()),
			zap.String("claimed", req.PlayerID),
		)
		return
	}

	c.mu.Lock()
	b.mode = match.ModeRemote
	b.session = s
	b.playerID = boundAs
	c.mu.Unlock()

	s.MarkReady(h)
	_ = h.Send(protocol.TypeGameStarting, protocol.GameStarting{
		Message:   "Starting in 2 seconds...",
		Countdown: 2,
	})
}

func (c *Coordinator) handleInput(h *conn.Handle, b *binding, env protocol.Envelope) {
	var req protocol.Input
	if err := env.Decode(&req); err != nil {
		return
	}
	dir := entity.Direction(req.Direction)
	if !entity.ValidDirection(dir) {
		return
	}
	if req.PlayerID != match.Player1 && req.PlayerID != match.Player2 {
		return
	}

	c.mu.Lock()
	s := b.session
	mode := b.mode
	ownID := b.playerID
	c.mu.Unlock()
	if s == nil {
		return
	}

	// Remote players may only move their own paddle; the solo paddle two
	// belongs to the computer.
	if mode == match.ModeRemote && req.PlayerID != ownID {
		return
	}
	if mode == match.ModeSolo && req.PlayerID != match.Player1 {
		return
	}

	s.HandleInput(req.PlayerID, dir)
}

func (c *Coordinator) handleLeaveQueue(h *conn.Handle, b *binding) {
	c.mu.Lock()
	waiting := b.mode == match.ModeRemote && b.session == nil
	if waiting {
		b.mode = ""
	}
	c.mu.Unlock()
	if !waiting {
		return
	}

	c.queue.Dequeue(h)
	_ = h.Send(protocol.TypeLeftQueue, protocol.LeftQueue{
		Message: "You left the matchmaking queue",
	})
}

func (c *Coordinator) handleRestart(h *conn.Handle, b *binding) {
	c.mu.Lock()
	mode := b.mode
	c.mu.Unlock()

	if mode == match.ModeRemote {
		_ = h.Send(protocol.TypeError, protocol.Error{Message: "Cannot restart online games. Return to menu."})
		return
	}
	if mode != match.ModeLocal && mode != match.ModeSolo {
		_ = h.Send(protocol.TypeError, protocol.Error{Message: "No game to restart"})
		return
	}

	c.mu.Lock()
	old := b.session
	b.session = nil
	c.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	c.createGame(h, b, mode)
}

// Disconnect releases everything a connection held: its queue entry, its
// session, and its registry binding. The registry removal is the guard that
// makes cleanup run exactly once per handle, however many close or error
// signals the transport delivers.
func (c *Coordinator) Disconnect(h *conn.Handle) {
	c.mu.Lock()
	b, ok := c.clients[h.ID()]
	if ok {
		delete(c.clients, h.ID())
	}
	remaining := len(c.clients)
	c.mu.Unlock()
	if !ok {
		return
	}

	c.queue.HandleDisconnect(h)
	if b.session != nil && b.mode != match.ModeRemote {
		b.session.HandleDisconnect(h.ID())
	}

	c.logger.Info("client disconnected",
		zap.String("conn_id", h.ID()),
		zap.Int("active_connections", remaining),
	)
}

// onSessionEnd clears registry bindings that point at an ended session. The
// mode is kept so a local or solo player can still restart.
func (c *Coordinator) onSessionEnd(s *match.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.clients {
		if b.session == s {
			b.session = nil
		}
	}
}

// ActiveConnections returns the number of registered connections.
func (c *Coordinator) ActiveConnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
