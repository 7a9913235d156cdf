// Package conn provides the Handle type: an opaque reference to one client's
// duplex message channel, bridging the game layer to the transport layer.
package conn

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/pong/internal/protocol"
)

// Handle routes outbound messages to a buffered channel drained by the
// transport's write pump. Pushes never block: a full or closed handle drops
// the message instead of stalling a session tick.
type Handle struct {
	id       string
	outbound chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewHandle creates a Handle for the given connection ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns a Handle with an open outbound channel.
func NewHandle(id string, bufferSize int) *Handle {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Handle{
		id:       id,
		outbound: make(chan []byte, bufferSize),
	}
}

// ID returns the connection identifier.
func (h *Handle) ID() string {
	return h.id
}

// Send encodes a message envelope and enqueues it for delivery.
//
// Postcondition: The message is enqueued, or an error is returned if the
// handle is closed, the buffer is full, or the payload does not marshal.
// Callers broadcasting state may ignore the error (fire-and-forget).
func (h *Handle) Send(msgType string, payload any) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	return h.push(data)
}

func (h *Handle) push(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("handle %s is closed", h.id)
	}
	select {
	case h.outbound <- data:
		return nil
	default:
		return fmt.Errorf("handle %s outbound buffer full", h.id)
	}
}

// Outbound returns the read-only delivery channel. The transport's write
// pump reads from this channel until it is closed.
func (h *Handle) Outbound() <-chan []byte {
	return h.outbound
}

// Close marks the handle as closed and closes the outbound channel.
// Safe to call multiple times.
//
// Postcondition: Further Send calls return an error.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.closed {
		h.closed = true
		close(h.outbound)
	}
	return nil
}

// IsClosed reports whether the handle has been closed.
func (h *Handle) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
