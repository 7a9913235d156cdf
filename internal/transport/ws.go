// Package transport accepts WebSocket connections and frames the message
// envelope between clients and the connection coordinator. It owns the
// socket read/write pumps; everything above it works with conn.Handle and
// protocol.Envelope.
package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pong/internal/config"
	"github.com/cory-johannsen/pong/internal/game/conn"
	"github.com/cory-johannsen/pong/internal/gameserver"
	"github.com/cory-johannsen/pong/internal/protocol"
)

// Server listens for WebSocket connections and dispatches each one to the
// coordinator. It implements the lifecycle Service interface.
type Server struct {
	cfg    config.ServerConfig
	coord  *gameserver.Coordinator
	logger *zap.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	listener net.Listener
	sockets  map[*websocket.Conn]struct{}
	running  bool
	wg       sync.WaitGroup
}

// NewServer creates a WebSocket server bound to the coordinator.
//
// Precondition: coord and logger must be non-nil.
func NewServer(cfg config.ServerConfig, coord *gameserver.Coordinator, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		coord:  coord,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sockets: make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}
	return s
}

// Start begins serving. It blocks until Stop is called.
//
// Precondition: The server must not already be running.
// Postcondition: The listener is closed when this method returns.
func (s *Server) Start() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Stop gracefully stops the server: the listener closes, every open socket
// is closed, and all connection goroutines drain.
//
// Postcondition: All connections are closed and goroutines have exited.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for sock := range s.sockets {
		_ = sock.Close()
	}
	s.mu.Unlock()

	_ = s.httpSrv.Close()
	s.wg.Wait()

	s.logger.Info("websocket server stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleWS upgrades one HTTP request and runs its connection lifecycle.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		_ = sock.Close()
		return
	}
	s.sockets[sock] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.serveConn(sock, r.RemoteAddr)
}

func (s *Server) serveConn(sock *websocket.Conn, remoteAddr string) {
	defer s.wg.Done()
	start := time.Now()

	handle := conn.NewHandle(fmt.Sprintf("conn_%s", uuid.NewString()), 256)
	s.logger.Info("client connected",
		zap.String("conn_id", handle.ID()),
		zap.String("remote_addr", remoteAddr),
	)

	s.coord.Register(handle)

	// Keepalive: the write pump pings just inside the read deadline, and a
	// pong pushes the deadline out, so idle clients stay connected.
	_ = sock.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	// Write pump: drain the handle's outbound channel onto the socket
	// until the handle closes.
	var writeWG sync.WaitGroup
	writeWG.Add(1)
	go func() {
		defer writeWG.Done()
		pings := time.NewTicker(s.cfg.ReadTimeout * 9 / 10)
		defer pings.Stop()
		for {
			select {
			case data, ok := <-handle.Outbound():
				if !ok {
					return
				}
				_ = sock.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-pings.C:
				_ = sock.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	s.readPump(sock, handle)

	// One cleanup path regardless of why the read pump exited; the
	// coordinator guards against running it twice.
	s.coord.Disconnect(handle)
	_ = handle.Close()
	writeWG.Wait()

	s.mu.Lock()
	delete(s.sockets, sock)
	s.mu.Unlock()
	_ = sock.Close()

	s.logger.Info("client disconnected",
		zap.String("conn_id", handle.ID()),
		zap.Duration("duration", time.Since(start)),
	)
}

// readPump decodes inbound envelopes and dispatches them until the socket
// fails or closes. Malformed frames are answered with an error message and
// the connection stays open. Any frame, pongs included, resets the read
// deadline.
func (s *Server) readPump(sock *websocket.Conn, handle *conn.Handle) {
	for {
		_ = sock.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed",
					zap.String("conn_id", handle.ID()),
					zap.Error(err),
				)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			s.logger.Warn("malformed message",
				zap.String("conn_id", handle.ID()),
			)
			_ = handle.Send(protocol.TypeError, protocol.Error{Message: "Invalid message format"})
			continue
		}

		s.coord.Dispatch(handle, env)
	}
}
