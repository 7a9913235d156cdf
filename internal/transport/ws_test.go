package transport_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pong/internal/config"
	"github.com/cory-johannsen/pong/internal/game/match"
	"github.com/cory-johannsen/pong/internal/gameserver"
	"github.com/cory-johannsen/pong/internal/protocol"
	"github.com/cory-johannsen/pong/internal/transport"
)

// startServer brings up a server on an ephemeral port and tears it down with
// the test.
func startServer(t *testing.T) (*transport.Server, *gameserver.Coordinator) {
	t.Helper()
	return startServerWithTimeouts(t, 5*time.Second, 5*time.Second)
}

func startServerWithTimeouts(t *testing.T, read, write time.Duration) (*transport.Server, *gameserver.Coordinator) {
	t.Helper()

	cfg := config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  read,
		WriteTimeout: write,
	}
	coord := gameserver.NewCoordinator(match.DefaultSettings(), time.Minute, zap.NewNop())
	srv := transport.NewServer(cfg, coord, zap.NewNop())

	go func() {
		if err := srv.Start(); err != nil {
			t.Errorf("server start: %v", err)
		}
	}()
	t.Cleanup(srv.Stop)

	require.Eventually(t, func() bool {
		return srv.Addr() != ""
	}, time.Second, 5*time.Millisecond)

	return srv, coord
}

func dial(t *testing.T, srv *transport.Server) *websocket.Conn {
	t.Helper()
	sock, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sock.Close() })
	return sock
}

func readEnvelope(t *testing.T, sock *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, sock.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := sock.ReadMessage()
	require.NoError(t, err)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func readUntil(t *testing.T, sock *websocket.Conn, msgType string) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := readEnvelope(t, sock)
		if env.Type == msgType {
			return env
		}
	}
	t.Fatalf("never received %q", msgType)
	return protocol.Envelope{}
}

func send(t *testing.T, sock *websocket.Conn, msgType string, payload any) {
	t.Helper()
	data, err := protocol.Encode(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, sock.WriteMessage(websocket.TextMessage, data))
}

func TestServer_GreetsNewConnection(t *testing.T) {
	srv, coord := startServer(t)
	sock := dial(t, srv)

	env := readUntil(t, sock, protocol.TypeConnected)
	var greeting protocol.Connected
	require.NoError(t, env.Decode(&greeting))
	assert.NotEmpty(t, greeting.ConnectionID)
	assert.Equal(t, 1, coord.ActiveConnections())
}

func TestServer_PingPong(t *testing.T) {
	srv, _ := startServer(t)
	sock := dial(t, srv)
	readUntil(t, sock, protocol.TypeConnected)

	send(t, sock, protocol.TypePing, nil)
	env := readUntil(t, sock, protocol.TypePong)
	var pong protocol.Pong
	require.NoError(t, env.Decode(&pong))
	assert.Positive(t, pong.Timestamp)
}

func TestServer_MalformedFrameKeepsConnection(t *testing.T) {
	srv, _ := startServer(t)
	sock := dial(t, srv)
	readUntil(t, sock, protocol.TypeConnected)

	require.NoError(t, sock.WriteMessage(websocket.TextMessage, []byte("not json")))
	readUntil(t, sock, protocol.TypeError)

	// The connection survived the bad frame.
	send(t, sock, protocol.TypePing, nil)
	readUntil(t, sock, protocol.TypePong)
}

func TestServer_SoloGameOverWire(t *testing.T) {
	srv, _ := startServer(t)
	sock := dial(t, srv)
	readUntil(t, sock, protocol.TypeConnected)

	send(t, sock, protocol.TypeSelectMode, protocol.SelectMode{Mode: "solo"})
	env := readUntil(t, sock, protocol.TypeGameCreated)
	var created protocol.GameCreated
	require.NoError(t, env.Decode(&created))
	assert.Equal(t, "solo", created.Mode)

	send(t, sock, protocol.TypeReady, nil)
	readUntil(t, sock, protocol.TypeGameStarting)

	env = readUntil(t, sock, protocol.TypeUpdate)
	var snap protocol.Snapshot
	require.NoError(t, env.Decode(&snap))
	assert.Equal(t, created.GameID, snap.GameID)
	assert.Equal(t, "playing", snap.State)
}

func TestServer_IdleConnectionOutlivesReadTimeout(t *testing.T) {
	readTimeout := 200 * time.Millisecond
	srv, _ := startServerWithTimeouts(t, readTimeout, time.Second)
	sock := dial(t, srv)
	readUntil(t, sock, protocol.TypeConnected)
	require.NoError(t, sock.SetReadDeadline(time.Time{}))

	// The dialer's default ping handler answers the server's keepalive
	// pings while this goroutine sits in ReadMessage.
	got := make(chan error, 1)
	go func() {
		for {
			_, data, err := sock.ReadMessage()
			if err != nil {
				got <- err
				return
			}
			var env protocol.Envelope
			if json.Unmarshal(data, &env) == nil && env.Type == protocol.TypePong {
				got <- nil
				return
			}
		}
	}()

	// Stay silent well past the read deadline, then check the connection
	// still answers.
	time.Sleep(3 * readTimeout)
	send(t, sock, protocol.TypePing, nil)

	select {
	case err := <-got:
		require.NoError(t, err, "connection dropped during idle period")
	case <-time.After(2 * time.Second):
		t.Fatal("no pong after idle period")
	}
}

func TestServer_DisconnectReleasesRegistration(t *testing.T) {
	srv, coord := startServer(t)
	sock := dial(t, srv)
	readUntil(t, sock, protocol.TypeConnected)

	require.NoError(t, sock.Close())
	require.Eventually(t, func() bool {
		return coord.ActiveConnections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
