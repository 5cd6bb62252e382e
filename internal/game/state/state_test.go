package state

import (
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/command"
	"github.com/etherwake/mud/internal/game/session"
	"github.com/etherwake/mud/internal/game/world"
)

// testConn is an in-memory session.Conn capturing all output.
type testConn struct {
	mu     sync.Mutex
	input  chan string
	output []string
	closed bool
}

func newTestConn() *testConn {
	return &testConn{input: make(chan string, 16)}
}

func (c *testConn) ReadLine() (string, error) {
	line, ok := <-c.input
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (c *testConn) SuppressEcho() error { return nil }
func (c *testConn) RestoreEcho() error  { return nil }

func (c *testConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = append(c.output, string(data))
	return nil
}

func (c *testConn) WriteLine(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = append(c.output, text)
	return nil
}

func (c *testConn) WritePrompt(prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = append(c.output, prompt)
	return nil
}

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.input)
	}
	return nil
}

func (c *testConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
}

// dump returns everything written so far as one string.
func (c *testConn) dump() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.output, "\n")
}

// reset discards captured output.
func (c *testConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = nil
}

// worldFixture is a small two-room world with a player standing in room A.
type worldFixture struct {
	graph   *world.Graph
	roomA   *world.Room
	roomB   *world.Room
	session *session.Session
	conn    *testConn
	player  *world.Player
	state   *RoomState
}

// newWorldFixture builds the fixture and pushes the player's room state.
func newWorldFixture() *worldFixture {
	logger := zap.NewNop()
	graph := world.NewGraph(logger)
	roomA := world.NewRoom("a", "Room A", "A quiet room.")
	roomB := world.NewRoom("b", "Room B", "A louder room.")
	graph.SetExit(roomA, world.North, roomB)
	graph.SetExit(roomB, world.South, roomA)

	conn := newTestConn()
	sess := session.New(conn, logger)
	player := world.NewPlayer(1, "alice", sess)
	graph.AddActor(roomA, player)

	st := NewRoomState(sess, graph, command.DefaultResolver(), player, roomA, logger)
	sess.Push(st)

	return &worldFixture{
		graph:   graph,
		roomA:   roomA,
		roomB:   roomB,
		session: sess,
		conn:    conn,
		player:  player,
		state:   st,
	}
}
