// Package session provides the per-connection state stack. A session owns an
// ordered stack of input-handling states; exactly one state — the top —
// receives input at a time.
package session

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

// State is one input-handling behavior on a session's stack. States are
// created and destroyed by stack pushes and pops and never outlive their
// session.
type State interface {
	// OnStart runs when the state is pushed onto the stack.
	OnStart()
	// OnEnd runs when the state is popped off the stack.
	OnEnd()
	// OnPause runs when another state is pushed on top of this one.
	OnPause()
	// OnResume runs when this state becomes the top again after a pop.
	OnResume()
	// HandleInput processes one complete line of input.
	HandleInput(line string)
}

// Conn is the transport surface a session needs. *telnet.Conn satisfies it.
type Conn interface {
	ReadLine() (string, error)
	SuppressEcho() error
	RestoreEcho() error
	Write(data []byte) error
	WriteLine(text string) error
	WritePrompt(prompt string) error
	Close() error
	RemoteAddr() net.Addr
}

// Session binds one connection to a stack of states. All stack operations
// are safe for concurrent use, though in practice a session's own goroutine
// performs them while handling input.
type Session struct {
	conn   Conn
	logger *zap.Logger

	mu     sync.Mutex
	states []State
	alive  bool

	disconnectOnce sync.Once
	onDisconnect   []func()
}

// New creates a live Session over the given connection.
//
// Precondition: conn and logger must be non-nil.
func New(conn Conn, logger *zap.Logger) *Session {
	return &Session{
		conn:   conn,
		logger: logger,
		alive:  true,
	}
}

// Push puts a state on top of the stack. The previous top stops receiving
// input and is paused; the new state starts and receives all subsequent
// input until it is popped.
func (s *Session) Push(st State) {
	s.mu.Lock()
	var paused State
	if len(s.states) > 0 {
		paused = s.states[len(s.states)-1]
	}
	s.states = append(s.states, st)
	s.mu.Unlock()

	if paused != nil {
		paused.OnPause()
	}
	st.OnStart()
}

// Pop removes and returns the top state, ending it. If a state remains it
// becomes the input target again and is resumed. Popping an empty stack is
// a no-op returning nil.
func (s *Session) Pop() State {
	s.mu.Lock()
	if len(s.states) == 0 {
		s.mu.Unlock()
		return nil
	}
	popped := s.states[len(s.states)-1]
	s.states = s.states[:len(s.states)-1]
	var resumed State
	if len(s.states) > 0 {
		resumed = s.states[len(s.states)-1]
	}
	s.mu.Unlock()

	if resumed != nil {
		resumed.OnResume()
	}
	popped.OnEnd()
	return popped
}

// Clear discards the entire stack without running OnEnd or OnPause on the
// discarded states. Used only for hard transitions — login success abandons
// the transient form states rather than closing them gracefully.
func (s *Session) Clear() {
	s.mu.Lock()
	s.states = nil
	s.mu.Unlock()
}

// Current returns the state on top of the stack, or nil.
func (s *Session) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return nil
	}
	return s.states[len(s.states)-1]
}

// Depth returns the number of states on the stack.
func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// OnDisconnect registers a callback to run once when the session
// disconnects. Registration after disconnect runs the callback immediately.
func (s *Session) OnDisconnect(fn func()) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		fn()
		return
	}
	s.onDisconnect = append(s.onDisconnect, fn)
	s.mu.Unlock()
}

// Disconnect marks the session dead, discards the state stack, and fires
// the one-time disconnect notification. It is idempotent.
func (s *Session) Disconnect() {
	s.disconnectOnce.Do(func() {
		s.mu.Lock()
		s.alive = false
		s.states = nil
		callbacks := s.onDisconnect
		s.onDisconnect = nil
		s.mu.Unlock()

		for _, fn := range callbacks {
			fn()
		}
		_ = s.conn.Close()
	})
}

// Alive reports whether the session can still receive output.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Write sends raw bytes to the client. Writes after disconnect are dropped.
func (s *Session) Write(data []byte) error {
	if !s.Alive() {
		return nil
	}
	return s.conn.Write(data)
}

// WriteLine sends a line of text to the client. Writes after disconnect are
// dropped.
func (s *Session) WriteLine(text string) error {
	if !s.Alive() {
		return nil
	}
	return s.conn.WriteLine(text)
}

// WritePrompt sends a prompt without a trailing newline.
func (s *Session) WritePrompt(prompt string) error {
	if !s.Alive() {
		return nil
	}
	return s.conn.WritePrompt(prompt)
}

// SuppressEcho stops client-side echo until RestoreEcho is called. Forms
// use it around password prompts.
func (s *Session) SuppressEcho() error {
	return s.conn.SuppressEcho()
}

// RestoreEcho resumes client-side echo after a hidden prompt.
func (s *Session) RestoreEcho() error {
	return s.conn.RestoreEcho()
}

// RemoteAddr returns the client's network address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Run reads complete lines from the connection and delivers each to the
// state on top of the stack, until the connection fails or ctx is
// cancelled. It always tears the session down before returning: the stack
// is discarded and the disconnect notification fires exactly once.
//
// Postcondition: Returns nil on clean shutdown, or the transport error that
// ended the session.
func (s *Session) Run(ctx context.Context) error {
	defer s.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.conn.ReadLine()
		if err != nil {
			if !s.Alive() {
				// The session chose to end (quit); the read failure is
				// just the closed socket.
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		st := s.Current()
		if st == nil {
			if !s.Alive() {
				return nil
			}
			s.logger.Debug("input with empty state stack",
				zap.String("remote_addr", s.conn.RemoteAddr().String()),
			)
			continue
		}
		st.HandleInput(line)
	}
}
