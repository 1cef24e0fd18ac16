package session

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yootgame/yootd/internal/config"
	"github.com/yootgame/yootd/internal/frontend/tcp"
	"github.com/yootgame/yootd/internal/game/room"
)

func gameConfig() config.GameConfig {
	return config.GameConfig{
		DefaultTurnTime:   30,
		DefaultMaxPlayers: 4,
		MaxRooms:          0,
		OutboxBuffer:      64,
	}
}

// testServer starts an acceptor with a fresh registry on a random port and
// returns the listening address plus the registry for direct assertions.
func testServer(t *testing.T) (string, *room.Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := room.NewRegistry(0)
	handler := NewHandler(registry, room.NewBroadcaster(logger), gameConfig(), logger)

	cfg := config.TCPConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	acc := tcp.NewAcceptor(cfg, handler, logger)
	go func() { _ = acc.ListenAndServe() }()

	deadline := time.After(2 * time.Second)
	for {
		if acc.IsRunning() && acc.Addr() != "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Cleanup(func() { acc.Stop() })
	return acc.Addr(), registry
}

// testClient connects to addr and returns a raw TCP conn with helpers.
// It maintains a persistent read buffer across readUntil calls, discarding
// only the data up to and including the matched substring.
type testClient struct {
	conn   net.Conn
	t      *testing.T
	buffer string
}

func newTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	tc := &testClient{conn: conn, t: t}
	tc.readUntil("The connection to the server was successful.", 2*time.Second)
	return tc
}

func (tc *testClient) readUntil(substr string, timeout time.Duration) string {
	tc.t.Helper()

	if idx := strings.Index(tc.buffer, substr); idx >= 0 {
		end := idx + len(substr)
		result := tc.buffer[:end]
		tc.buffer = tc.buffer[end:]
		return result
	}

	_ = tc.conn.SetReadDeadline(time.Now().Add(timeout))
	tmp := make([]byte, 4096)
	for {
		n, err := tc.conn.Read(tmp)
		if n > 0 {
			tc.buffer += string(tmp[:n])
			if idx := strings.Index(tc.buffer, substr); idx >= 0 {
				end := idx + len(substr)
				result := tc.buffer[:end]
				tc.buffer = tc.buffer[end:]
				return result
			}
		}
		if err != nil {
			tc.t.Fatalf("reading until %q: got %q, error: %v", substr, tc.buffer, err)
		}
	}
}

func (tc *testClient) send(line string) {
	tc.t.Helper()
	_ = tc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := tc.conn.Write([]byte(line + "\r\n"))
	require.NoError(tc.t, err)
}

// named connects a client and completes the nickname step.
func named(t *testing.T, addr, nickname string) *testClient {
	t.Helper()
	c := newTestClient(t, addr)
	c.send("/nickname " + nickname)
	c.readUntil("Nickname set: "+nickname, 2*time.Second)
	return c
}

func TestCreateAndList(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/create room1 30 2")
	c.readUntil("Room 'room1' created.", 2*time.Second)

	c.send("/list")
	out := c.readUntil("Number of pieces: 2)", 2*time.Second)
	assert.Contains(t, out, "Currently created rooms:")
	assert.Contains(t, out, "- room1 (Turn Time: 30s, Number of pieces: 2)")
}

func TestCreateDoesNotAutoJoin(t *testing.T) {
	addr, registry := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/create room1")
	c.readUntil("Room 'room1' created.", 2*time.Second)

	r, ok := registry.Get("room1")
	require.True(t, ok)
	assert.Equal(t, 0, r.Len())

	// Still in the lobby, so /leave is rejected
	c.send("/leave")
	c.readUntil("You are not in any room.", 2*time.Second)
}

func TestCreateDefaults(t *testing.T) {
	addr, registry := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/create room1")
	c.readUntil("Room 'room1' created.", 2*time.Second)

	r, ok := registry.Get("room1")
	require.True(t, ok)
	assert.Equal(t, 30, r.TurnTime())
	assert.Equal(t, 4, r.MaxPlayers())
}

func TestCreateDuplicate(t *testing.T) {
	addr, registry := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/create room1 30 2")
	c.readUntil("Room 'room1' created.", 2*time.Second)

	c.send("/create room1 60 4")
	c.readUntil("Room 'room1' already exists.", 2*time.Second)

	// Original configuration untouched
	r, ok := registry.Get("room1")
	require.True(t, ok)
	assert.Equal(t, 30, r.TurnTime())
	assert.Equal(t, 2, r.MaxPlayers())
}

func TestCreateMalformedNumbers(t *testing.T) {
	addr, registry := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/create room1 thirty")
	c.readUntil("Invalid number format.", 2*time.Second)
	assert.Equal(t, 0, registry.Len())

	c.send("/create room1 30 many")
	c.readUntil("Invalid number format.", 2*time.Second)
	assert.Equal(t, 0, registry.Len())
}

func TestCommandsBeforeNicknameRejected(t *testing.T) {
	addr, registry := testServer(t)
	c := newTestClient(t, addr)

	for _, cmd := range []string{"/create room1", "/join room1", "/list", "/leave"} {
		c.send(cmd)
		c.readUntil("Set a nickname first with /nickname <name>.", 2*time.Second)
	}
	assert.Equal(t, 0, registry.Len())
}

func TestEmptyNicknameRejected(t *testing.T) {
	addr, _ := testServer(t)
	c := newTestClient(t, addr)

	c.send("/nickname")
	c.readUntil("Nickname must not be empty.", 2*time.Second)

	// Still unnamed, so lobby commands stay rejected
	c.send("/list")
	c.readUntil("Set a nickname first", 2*time.Second)

	c.send("/nickname Alice")
	c.readUntil("Nickname set: Alice", 2*time.Second)
}

func TestNicknameCannotBeReset(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/nickname Bob")
	c.readUntil("Nickname already set.", 2*time.Second)
}

func TestJoinCapacity(t *testing.T) {
	addr, _ := testServer(t)
	a := named(t, addr, "A")
	b := named(t, addr, "B")
	c := named(t, addr, "C")

	a.send("/create room1 30 2")
	a.readUntil("Room 'room1' created.", 2*time.Second)

	a.send("/join room1")
	a.readUntil("Joined room 'room1'.", 2*time.Second)

	b.send("/join room1")
	b.readUntil("Joined room 'room1'.", 2*time.Second)

	c.send("/join room1")
	c.readUntil("Room does not exist or is full.", 2*time.Second)
}

func TestJoinNonexistentRoom(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/join ghost")
	c.readUntil("Room does not exist or is full.", 2*time.Second)
}

func TestJoinWhileInRoomRejected(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/create room1")
	c.readUntil("created.", 2*time.Second)
	c.send("/create room2")
	c.readUntil("created.", 2*time.Second)

	c.send("/join room1")
	c.readUntil("Joined room 'room1'.", 2*time.Second)

	c.send("/join room2")
	c.readUntil("You are already in a room.", 2*time.Second)

	c.send("/create room3")
	c.readUntil("You are already in a room.", 2*time.Second)
}

func TestLeaveEmptiesAndDeletesRoom(t *testing.T) {
	addr, _ := testServer(t)
	a := named(t, addr, "Alice")
	b := named(t, addr, "Bob")

	a.send("/create room1")
	a.readUntil("created.", 2*time.Second)
	a.send("/join room1")
	a.readUntil("Joined room 'room1'.", 2*time.Second)

	a.send("/leave")
	a.readUntil("Left room 'room1'.", 2*time.Second)

	b.send("/list")
	b.readUntil("Currently no rooms created.", 2*time.Second)

	b.send("/join room1")
	b.readUntil("Room does not exist or is full.", 2*time.Second)
}

func TestListEmpty(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/list")
	c.readUntil("Currently no rooms created.", 2*time.Second)
}

func TestUnknownCommandHelp(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/dance")
	out := c.readUntil("/quit", 2*time.Second)
	assert.Contains(t, out, "Unknown command.")
	assert.Contains(t, out, "/create <name> [turnTime] [maxPlayers]")
}

func TestQuit(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("/quit")
	c.readUntil("Terminate the connection to the server.", 2*time.Second)

	// The server closes the connection after the notice
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	for {
		_, err := c.conn.Read(buf)
		if err != nil {
			return
		}
	}
}

func TestQuitWhileInRoomFreesRoom(t *testing.T) {
	addr, registry := testServer(t)
	a := named(t, addr, "Alice")

	a.send("/create room1")
	a.readUntil("created.", 2*time.Second)
	a.send("/join room1")
	a.readUntil("Joined", 2*time.Second)

	a.send("/quit")
	a.readUntil("Terminate the connection to the server.", 2*time.Second)

	deadline := time.After(2 * time.Second)
	for registry.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("room was not deleted after quit, %d rooms left", registry.Len())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestDisconnectCleansUpRoom(t *testing.T) {
	addr, registry := testServer(t)
	a := named(t, addr, "Alice")
	b := named(t, addr, "Bob")

	a.send("/create room1 30 2")
	a.readUntil("created.", 2*time.Second)
	a.send("/join room1")
	a.readUntil("Joined", 2*time.Second)
	b.send("/join room1")
	b.readUntil("Joined", 2*time.Second)

	// Abrupt disconnect, no /leave or /quit
	a.conn.Close()

	// Bob is told Alice left, and the room survives with one occupant
	b.readUntil("Alice left the room.", 2*time.Second)

	r, ok := registry.Get("room1")
	require.True(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestMoveUpdateRelay(t *testing.T) {
	addr, _ := testServer(t)
	a := named(t, addr, "Alice")
	b := named(t, addr, "Bob")

	a.send("/create room1 30 2")
	a.readUntil("created.", 2*time.Second)
	a.send("/join room1")
	a.readUntil("Joined", 2*time.Second)
	b.send("/join room1")
	b.readUntil("Joined", 2*time.Second)
	a.readUntil("Bob joined the room.", 2*time.Second)

	a.send("MOVE_UPDATE Alice P1 7")

	b.readUntil("MOVE_UPDATE Alice P1 7", 2*time.Second)
	// The sender receives the broadcast as well
	a.readUntil("MOVE_UPDATE Alice P1 7", 2*time.Second)
}

func TestChatRelayExcludesSender(t *testing.T) {
	addr, _ := testServer(t)
	a := named(t, addr, "Alice")
	b := named(t, addr, "Bob")

	a.send("/create room1 30 2")
	a.readUntil("created.", 2*time.Second)
	a.send("/join room1")
	a.readUntil("Joined", 2*time.Second)
	b.send("/join room1")
	b.readUntil("Joined", 2*time.Second)

	a.send("good luck")
	b.readUntil("Alice: good luck", 2*time.Second)

	// A /list response arrives without the chat line echoing back to Alice
	a.send("/list")
	out := a.readUntil("Number of pieces:", 2*time.Second)
	assert.NotContains(t, out, "Alice: good luck")
}

func TestFreeTextOutsideRoom(t *testing.T) {
	addr, _ := testServer(t)
	c := named(t, addr, "Alice")

	c.send("hello anyone")
	c.readUntil("You are not in any room.", 2*time.Second)
}

func TestJoinAndLeaveNotices(t *testing.T) {
	addr, _ := testServer(t)
	a := named(t, addr, "Alice")
	b := named(t, addr, "Bob")

	a.send("/create room1 30 3")
	a.readUntil("created.", 2*time.Second)
	a.send("/join room1")
	a.readUntil("Joined", 2*time.Second)

	b.send("/join room1")
	b.readUntil("Joined", 2*time.Second)
	a.readUntil("Bob joined the room.", 2*time.Second)

	b.send("/leave")
	b.readUntil("Left room 'room1'.", 2*time.Second)
	a.readUntil("Bob left the room.", 2*time.Second)
}
