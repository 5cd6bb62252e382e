// Package game wires a Telnet connection into a session: each accepted
// connection gets a state stack seeded with the welcome gateway.
package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/command"
	"github.com/etherwake/mud/internal/game/players"
	"github.com/etherwake/mud/internal/game/session"
	"github.com/etherwake/mud/internal/game/state"
	"github.com/etherwake/mud/internal/game/world"
	"github.com/etherwake/mud/internal/telnet"
)

// Handler builds a session per connection. It satisfies telnet.SessionHandler.
type Handler struct {
	graph    *world.Graph
	registry *players.Registry
	resolver *command.Resolver
	logger   *zap.Logger
}

// NewHandler creates a Handler.
//
// Precondition: all arguments must be non-nil.
func NewHandler(graph *world.Graph, registry *players.Registry, resolver *command.Resolver, logger *zap.Logger) *Handler {
	return &Handler{
		graph:    graph,
		registry: registry,
		resolver: resolver,
		logger:   logger,
	}
}

// HandleSession runs one client session to completion: the welcome gateway
// goes on the bottom of the stack and the input loop runs until the client
// disconnects or the server shuts down.
func (h *Handler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	sess := session.New(conn, h.logger)
	gateway := &state.Gateway{
		Session:  sess,
		Registry: h.registry,
		Graph:    h.graph,
		Resolver: h.resolver,
		Logger:   h.logger,
	}
	sess.Push(gateway.Welcome())
	return sess.Run(ctx)
}
