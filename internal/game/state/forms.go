package state

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/command"
	"github.com/etherwake/mud/internal/game/players"
	"github.com/etherwake/mud/internal/game/session"
	"github.com/etherwake/mud/internal/game/world"
	"github.com/etherwake/mud/internal/render"
	"github.com/etherwake/mud/internal/storage/postgres"
)

// loginTimeout bounds the account and room lookups behind one form
// submission.
const loginTimeout = 15 * time.Second

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// Gateway builds the pre-game form states: the welcome menu, login, and
// registration. A successful login or registration clears the transient
// form stack and replaces it with the in-world RoomState.
type Gateway struct {
	Session  *session.Session
	Registry *players.Registry
	Graph    *world.Graph
	Resolver *command.Resolver
	Logger   *zap.Logger
}

// Welcome returns the state every fresh connection starts in: a banner and
// the login-or-register menu.
func (g *Gateway) Welcome() session.State {
	header := "Welcome to Etherwake.\r\n" +
		"\r\n" +
		"1. Log in to an existing account\r\n" +
		"2. Create a new account"
	prompts := []FormPrompt{{
		Prompt:   "> ",
		Field:    "choice",
		Validate: func(v string) bool { return v == "1" || v == "2" },
		ErrorMsg: "Please choose 1 or 2.",
	}}
	return NewForm(g.Session, header, prompts, func(values map[string]string) {
		if values["choice"] == "1" {
			g.Session.Push(g.loginForm())
		} else {
			g.Session.Push(g.registerForm())
		}
	})
}

func (g *Gateway) loginForm() session.State {
	prompts := []FormPrompt{
		{Prompt: "Username: ", Field: "username"},
		{Prompt: "Password: ", Field: "password", Password: true},
	}
	return NewForm(g.Session, "", prompts, func(values map[string]string) {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()

		player, room, err := g.Registry.Login(ctx, g.Session, values["username"], values["password"])
		switch {
		case err == nil:
			g.enterWorld(player, room)
		case errors.Is(err, postgres.ErrAccountNotFound), errors.Is(err, postgres.ErrInvalidCredentials):
			render.Line(g.Session, "Invalid username or password.")
			g.Session.Push(g.Welcome())
		case errors.Is(err, players.ErrAlreadyOnline):
			render.Line(g.Session, "That account is already logged in.")
			g.Session.Push(g.Welcome())
		default:
			g.Logger.Error("login failed", zap.String("username", values["username"]), zap.Error(err))
			render.Line(g.Session, "The world is unavailable right now. Try again shortly.")
			g.Session.Push(g.Welcome())
		}
	})
}

func (g *Gateway) registerForm() session.State {
	prompts := []FormPrompt{
		{
			Prompt:   "Username: ",
			Field:    "username",
			Validate: func(v string) bool { return usernamePattern.MatchString(v) },
			ErrorMsg: "Usernames are 3 to 20 letters, numbers, or underscores.",
		},
		{
			Prompt:   "Password: ",
			Field:    "password",
			Validate: func(v string) bool { return len(v) >= 6 },
			ErrorMsg: "Passwords must be at least 6 characters.",
			Password: true,
		},
		{Prompt: "Repeat password: ", Field: "repeat", Password: true},
	}
	return NewForm(g.Session, "", prompts, func(values map[string]string) {
		if values["password"] != values["repeat"] {
			render.Line(g.Session, "Passwords don't match.")
			g.Session.Push(g.registerForm())
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()

		player, room, err := g.Registry.Register(ctx, g.Session, values["username"], values["password"])
		switch {
		case err == nil:
			g.enterWorld(player, room)
		case errors.Is(err, postgres.ErrAccountExists):
			render.Line(g.Session, "That username is already taken.")
			g.Session.Push(g.Welcome())
		default:
			g.Logger.Error("registration failed", zap.String("username", values["username"]), zap.Error(err))
			render.Line(g.Session, "The world is unavailable right now. Try again shortly.")
			g.Session.Push(g.Welcome())
		}
	})
}

// enterWorld discards whatever forms remain on the stack and drops the
// player into the room state.
func (g *Gateway) enterWorld(player *world.Player, room *world.Room) {
	g.Session.Clear()
	g.Session.Push(NewRoomState(g.Session, g.Graph, g.Resolver, player, room, g.Logger))
}
