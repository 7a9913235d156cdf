// Package protocol defines the tagged {type, data} message envelope exchanged
// with clients and the typed payloads carried inside it. The transport layer
// frames envelopes onto the wire; everything above it works with these structs.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound message types (client → server).
const (
	TypeSelectMode  = "selectMode"
	TypeReady       = "ready"
	TypeReadyRemote = "readyRemote"
	TypeInput       = "input"
	TypeLeaveQueue  = "leaveQueue"
	TypeRestartGame = "restartGame"
	TypePing        = "ping"
)

// Outbound message types (server → client).
const (
	TypeConnected            = "connected"
	TypeQueueStatus          = "queueStatus"
	TypeMatchmakingTimeout   = "matchmakingTimeout"
	TypeMatchFound           = "matchFound"
	TypeGameCreated          = "gameCreated"
	TypeGameStarting         = "gameStarting"
	TypeUpdate               = "update"
	TypeGoal                 = "goal"
	TypeGameEnd              = "gameEnd"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeLeftQueue            = "leftQueue"
	TypePong                 = "pong"
	TypeError                = "error"
)

// Envelope is the wire framing for every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the envelope payload into dst.
//
// Precondition: dst must be a non-nil pointer.
// Postcondition: Returns an error if the payload is absent or malformed.
func (e Envelope) Decode(dst any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("message %q has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("decoding %q payload: %w", e.Type, err)
	}
	return nil
}

// Encode marshals a payload into a framed envelope ready for the wire.
//
// Precondition: payload must be JSON-marshalable (nil is allowed).
// Postcondition: Returns the serialized envelope or a non-nil error.
func Encode(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %q payload: %w", msgType, err)
		}
		env.Data = data
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %q envelope: %w", msgType, err)
	}
	return out, nil
}

// SelectMode requests a new game in the given mode.
type SelectMode struct {
	Mode string `json:"mode"`
}

// ReadyRemote signals readiness for a matchmade game.
type ReadyRemote struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// Input carries one paddle movement command.
type Input struct {
	PlayerID  string `json:"playerId"`
	Direction string `json:"direction"`
}

// Connected is the first message sent to every new connection.
type Connected struct {
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

// QueueStatus reports a waiting player's place in the matchmaking queue.
type QueueStatus struct {
	Position     int `json:"position"`
	TotalInQueue int `json:"totalInQueue"`
}

// MatchmakingTimeout tells a player their queue wait expired.
type MatchmakingTimeout struct {
	Message string `json:"message"`
}

// MatchFound notifies a queued player that a match was created.
type MatchFound struct {
	GameID       string   `json:"gameId"`
	YourSide     string   `json:"yourSide"`
	InitialState Snapshot `json:"initialState"`
}

// GameCreated confirms creation of a local or solo game.
type GameCreated struct {
	GameID       string   `json:"gameId"`
	Mode         string   `json:"mode"`
	PlayerID     string   `json:"playerId"`
	InitialState Snapshot `json:"initialState"`
}

// GameStarting acknowledges a ready signal.
type GameStarting struct {
	Message   string `json:"message"`
	Countdown int    `json:"countdown"`
}

// Scores holds both players' point totals.
type Scores struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// Goal announces a point being scored.
type Goal struct {
	Scorer string `json:"scorer"`
	Scores Scores `json:"scores"`
}

// GameEnd is the terminal notification for a session.
type GameEnd struct {
	Winner     string `json:"winner"`
	Reason     string `json:"reason"`
	FinalScore Scores `json:"finalScore"`
}

// OpponentDisconnected tells the remaining player their opponent dropped.
type OpponentDisconnected struct {
	Message string `json:"message"`
	Winner  string `json:"winner,omitempty"`
}

// LeftQueue confirms a voluntary queue exit.
type LeftQueue struct {
	Message string `json:"message"`
}

// Pong answers a client ping.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

// Error is a non-fatal protocol or domain error answer.
type Error struct {
	Message string `json:"message"`
}

// PaddleState is the wire representation of one paddle.
type PaddleState struct {
	ID     string  `json:"id"`
	Side   string  `json:"side"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Score  int     `json:"score"`
}

// BallState is the wire representation of the ball.
type BallState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	VX     float64 `json:"vx"`
	VZ     float64 `json:"vz"`
	Radius float64 `json:"radius"`
	Speed  float64 `json:"speed"`
}

// Snapshot is the full per-tick session state broadcast to clients. Its JSON
// form is idempotent: decoding and re-encoding reproduces identical values.
type Snapshot struct {
	GameID        string      `json:"gameId"`
	Mode          string      `json:"mode"`
	Player1       PaddleState `json:"player1"`
	Player2       PaddleState `json:"player2"`
	Ball          BallState   `json:"ball"`
	FieldWidth    float64     `json:"fieldWidth"`
	FieldDepth    float64     `json:"fieldDepth"`
	State         string      `json:"state"`
	Winner        string      `json:"winner"`
	Elapsed       float64     `json:"elapsed"`
	TimeRemaining float64     `json:"timeRemaining"`
}
