// Package matchmaking provides the FIFO waiting queue that pairs remote
// players into sessions, plus the table of active matchmade games.
package matchmaking

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pong/internal/game/conn"
	"github.com/cory-johannsen/pong/internal/game/match"
	"github.com/cory-johannsen/pong/internal/protocol"
)

type entry struct {
	handle   *conn.Handle
	joinedAt time.Time
	timeout  *match.Timer
}

// Queue pairs waiting handles strictly in arrival order. One mutex
// serializes every queue and game-table mutation, whether it originates from
// message handling or from a timeout callback.
type Queue struct {
	settings match.Settings
	timeout  time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	entries   []*entry
	games     map[string]*match.Session
	onGameEnd func(*match.Session)
}

// NewQueue creates an empty matchmaking queue. Sessions it creates use the
// given match settings; entries wait at most timeout before being notified
// and removed.
//
// Precondition: timeout > 0; logger must be non-nil.
func NewQueue(settings match.Settings, timeout time.Duration, logger *zap.Logger) *Queue {
	return &Queue{
		settings: settings,
		timeout:  timeout,
		logger:   logger,
		games:    make(map[string]*match.Session),
	}
}

// SetOnGameEnd registers a callback invoked after a queue-created session
// ends and has been reclaimed from the games table.
func (q *Queue) SetOnGameEnd(fn func(*match.Session)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onGameEnd = fn
}

// Enqueue adds a handle to the waiting list and immediately attempts a
// match. A handle already queued is a no-op.
func (q *Queue) Enqueue(h *conn.Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.handle.ID() == h.ID() {
			return
		}
	}

	e := &entry{handle: h, joinedAt: time.Now()}
	e.timeout = match.NewTimer(q.timeout, func() {
		q.expire(h)
	})
	q.entries = append(q.entries, e)

	q.logger.Info("player queued",
		zap.String("conn_id", h.ID()),
		zap.Int("queue_size", len(q.entries)),
	)

	q.broadcastStatusLocked()
	q.tryMatchLocked()
}

// Dequeue removes a handle from the waiting list. Idempotent.
//
// Postcondition: Returns true if the handle was queued.
func (q *Queue) Dequeue(h *conn.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(h.ID())
}

func (q *Queue) removeLocked(handleID string) bool {
	for i, e := range q.entries {
		if e.handle.ID() == handleID {
			e.timeout.Stop()
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.broadcastStatusLocked()
			return true
		}
	}
	return false
}

// expire fires when an entry's wait timer elapses. If the handle is still
// queued it is told and removed; if it matched in the meantime this is a
// no-op.
func (q *Queue) expire(h *conn.Handle) {
	q.mu.Lock()
	removed := q.removeLocked(h.ID())
	q.mu.Unlock()

	if !removed {
		return
	}
	_ = h.Send(protocol.TypeMatchmakingTimeout, protocol.MatchmakingTimeout{
		Message: "No opponent found. Please try again.",
	})
	q.logger.Info("matchmaking timeout", zap.String("conn_id", h.ID()))
}

// tryMatchLocked pairs the two oldest open entries repeatedly until fewer
// than two remain. Entries whose channel closed without a disconnect signal
// are purged as they surface.
func (q *Queue) tryMatchLocked() {
	for len(q.entries) >= 2 {
		if q.entries[0].handle.IsClosed() {
			q.entries[0].timeout.Stop()
			q.entries = q.entries[1:]
			continue
		}
		if q.entries[1].handle.IsClosed() {
			q.entries[1].timeout.Stop()
			q.entries = append(q.entries[:1], q.entries[2:]...)
			continue
		}

		e1, e2 := q.entries[0], q.entries[1]
		q.entries = q.entries[2:]
		e1.timeout.Stop()
		e2.timeout.Stop()

		s := match.NewSession(match.ModeRemote, q.settings, q.logger)
		s.Bind(match.Player1, e1.handle)
		s.Bind(match.Player2, e2.handle)
		s.SetOnEnd(q.reclaim)
		q.games[s.ID()] = s

		snap := s.Snapshot()
		_ = e1.handle.Send(protocol.TypeMatchFound, protocol.MatchFound{
			GameID:       s.ID(),
			YourSide:     match.Player1,
			InitialState: snap,
		})
		_ = e2.handle.Send(protocol.TypeMatchFound, protocol.MatchFound{
			GameID:       s.ID(),
			YourSide:     match.Player2,
			InitialState: snap,
		})

		q.logger.Info("match created",
			zap.String("game_id", s.ID()),
			zap.String("player1", e1.handle.ID()),
			zap.String("player2", e2.handle.ID()),
		)
	}
	q.broadcastStatusLocked()
}

// reclaim removes an ended session from the games table and forwards to the
// registered end callback. Runs outside the session lock.
func (q *Queue) reclaim(s *match.Session) {
	q.mu.Lock()
	delete(q.games, s.ID())
	fn := q.onGameEnd
	q.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// Game returns the active matchmade session with the given id.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (q *Queue) Game(id string) (*match.Session, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.games[id]
	return s, ok
}

// HandleDisconnect performs queue-side cleanup for a dropped connection:
// dequeues it if waiting, and if it is bound to an active matchmade session,
// forwards the disconnect and reclaims the session.
func (q *Queue) HandleDisconnect(h *conn.Handle) {
	q.mu.Lock()
	q.removeLocked(h.ID())
	var hit *match.Session
	for _, s := range q.games {
		if s.HasHandle(h.ID()) {
			hit = s
			break
		}
	}
	q.mu.Unlock()

	if hit != nil {
		hit.HandleDisconnect(h.ID())
	}
}

// Size returns the number of waiting entries.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ActiveGames returns the number of live matchmade sessions.
func (q *Queue) ActiveGames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.games)
}

// broadcastStatusLocked tells every waiting player their queue position.
func (q *Queue) broadcastStatusLocked() {
	total := len(q.entries)
	for i, e := range q.entries {
		_ = e.handle.Send(protocol.TypeQueueStatus, protocol.QueueStatus{
			Position:     i + 1,
			TotalInQueue: total,
		})
	}
}
