package chat

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/croftja/parley/internal/dependencies/clock"
	"github.com/croftja/parley/internal/model"
	"github.com/croftja/parley/internal/protocol"
	"github.com/croftja/parley/internal/services/auth"
	"github.com/croftja/parley/internal/storage"
)

// State is a session's position in its lifecycle. Transitions only move
// forward; StateClosed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

// System originator names for server-generated messages
const (
	loginBotName  = "LoginBot"
	creatorBot    = "CreatorBot"
	announcerName = "Announcer"
)

// Session is the server-side state and goroutine bound to one client
// connection. It owns the connection's framer; all sends go through a
// write mutex because broadcasts are delivered on other sessions'
// goroutines.
type Session struct {
	conn   net.Conn
	framer *protocol.Framer

	registry *Registry
	router   *Router
	auth     *auth.Service
	storage  storage.Storage
	clock    clock.Clock
	logger   *slog.Logger

	mu            sync.RWMutex
	identity      string
	authenticated bool
	state         State

	sendMu sync.Mutex
}

// NewSession creates a session for an accepted connection under the given
// transient id. The caller inserts it into the registry before Run.
func NewSession(conn net.Conn, id string, registry *Registry, router *Router, authSvc *auth.Service, store storage.Storage, clk clock.Clock, logger *slog.Logger) *Session {
	return &Session{
		conn:     conn,
		framer:   protocol.NewFramer(conn),
		registry: registry,
		router:   router,
		auth:     authSvc,
		storage:  store,
		clock:    clk,
		logger:   logger.With(slog.String("component", "session"), slog.String("id", id)),
		identity: id,
		state:    StateConnecting,
	}
}

// Identity returns the session's current registry key: the transient id
// before login, the display name after.
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Authenticated reports whether the session has completed login.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Deliver assembles the message and writes it to the connection. Safe to
// call from any goroutine.
func (s *Session) Deliver(msg *model.Message) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.framer.WriteMessage(msg.Assemble())
}

// send emits a server-generated line from the given system originator.
func (s *Session) send(content, originator string) error {
	return s.Deliver(model.NewMessage(content, originator, s.clock.Now()))
}

// Close tears the connection down, which unblocks the session goroutine's
// pending read and drives it to StateClosed.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Run drives the session through its state machine. It returns when the
// connection drops, a quit command is processed, or the session is closed
// externally. Every failure is converted into teardown here; nothing
// escapes the session goroutine.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown(ctx)

	s.setState(StateAuthenticating)
	name, ok := s.authenticate(ctx)
	if !ok {
		return
	}

	s.setState(StateActive)
	s.logger.Info("session authenticated", slog.String("name", name))

	s.replayHistory(ctx, name)
	s.router.Broadcast(ctx, model.NewMessage("["+name+"] has entered the chat.", announcerName, s.clock.Now()))

	s.chatLoop(ctx)
}

// teardown removes the session from the registry, announces the departure
// if it was authenticated, and releases the connection.
func (s *Session) teardown(ctx context.Context) {
	s.setState(StateClosed)

	identity := s.Identity()
	wasAuthenticated := s.Authenticated()

	if s.registry.Remove(identity) && wasAuthenticated {
		s.logger.Info("client disconnected", slog.String("name", identity))
		s.router.Broadcast(ctx, model.NewMessage("("+identity+") has left the chat.", announcerName, s.clock.Now()))
	}

	_ = s.conn.Close()
}

// authenticate loops the login-or-create flow until the client either
// authenticates or the connection fails. There is no retry limit.
func (s *Session) authenticate(ctx context.Context) (string, bool) {
	for {
		create, err := s.promptLoginOption()
		if err != nil {
			return "", false
		}

		var name string
		var ok bool
		if create {
			name, ok, err = s.inputCreateAccount(ctx)
		} else {
			name, ok, err = s.inputLogin(ctx)
		}
		if err != nil {
			return "", false
		}
		if !ok {
			continue
		}

		// The rename is the atomic point where the transient id becomes
		// the display name; losing the race means someone else holds the
		// name online right now.
		if err := s.registry.Rename(s.Identity(), name); err != nil {
			_ = s.send("Name already exists.", loginBotName)
			continue
		}

		s.mu.Lock()
		s.identity = name
		s.authenticated = true
		s.mu.Unlock()

		return name, true
	}
}

// promptLoginOption asks the client to choose login (1) or account
// creation (2), reading until it gets one of the two.
func (s *Session) promptLoginOption() (create bool, err error) {
	if err := s.send("You need to log in or create an account.", loginBotName); err != nil {
		return false, err
	}
	if err := s.send("1: Login", loginBotName); err != nil {
		return false, err
	}
	if err := s.send("2: Create Account", loginBotName); err != nil {
		return false, err
	}

	for {
		input, err := s.framer.ReadMessage()
		if err != nil {
			return false, err
		}
		switch choice, convErr := strconv.Atoi(strings.TrimSpace(input)); {
		case convErr != nil:
			// Not numeric; keep listening, as the original did.
		case choice == 1:
			return false, nil
		case choice == 2:
			return true, nil
		}
	}
}

// inputCreateAccount collects and validates a candidate name and password
// and persists the account. ok=false means a validation failure that was
// reported to the client; err means the connection is gone.
func (s *Session) inputCreateAccount(ctx context.Context) (name string, ok bool, err error) {
	if err := s.send("Create username: ", creatorBot); err != nil {
		return "", false, err
	}
	name, err = s.framer.ReadMessage()
	if err != nil {
		return "", false, err
	}

	if !auth.ValidName(name) {
		return "", false, s.send("Invalid syntax. Only letters and numbers!", creatorBot)
	}
	if !s.nameAvailable(ctx, name) {
		return "", false, s.send("Name already exists.", creatorBot)
	}

	if err := s.send("Create password:", creatorBot); err != nil {
		return "", false, err
	}
	password, err := s.framer.ReadMessage()
	if err != nil {
		return "", false, err
	}

	if !auth.ValidPassword(password) {
		return "", false, s.send("Password must be between 4 and 8 digits long and include at least one numeric digit.", creatorBot)
	}

	if err := s.auth.Register(ctx, name, password); err != nil {
		if errors.Is(err, auth.ErrNameTaken) {
			return "", false, s.send("Name already exists.", creatorBot)
		}
		s.logger.Error("account creation failed", slog.Any("error", err))
		return "", false, s.send("Could not create account.", creatorBot)
	}

	return name, true, nil
}

// inputLogin collects a name and password and verifies them against the
// account store.
func (s *Session) inputLogin(ctx context.Context) (name string, ok bool, err error) {
	if err := s.send("Enter username: ", loginBotName); err != nil {
		return "", false, err
	}
	name, err = s.framer.ReadMessage()
	if err != nil {
		return "", false, err
	}

	known, lookupErr := s.auth.AccountExists(ctx, name)
	if lookupErr != nil {
		s.logger.Error("account lookup failed", slog.Any("error", lookupErr))
	}
	if !known {
		return "", false, s.send("Invalid username.", loginBotName)
	}

	if err := s.send("Enter password: ", loginBotName); err != nil {
		return "", false, err
	}
	password, err := s.framer.ReadMessage()
	if err != nil {
		return "", false, err
	}

	if err := s.auth.Login(ctx, name, password); err != nil {
		return "", false, nil
	}
	return name, true, nil
}

// nameAvailable reports whether name is free both online and in the
// account store.
func (s *Session) nameAvailable(ctx context.Context, name string) bool {
	if _, online := s.registry.Lookup(name); online {
		return false
	}
	exists, err := s.auth.AccountExists(ctx, name)
	if err != nil {
		s.logger.Error("account lookup failed", slog.Any("error", err))
		return false
	}
	return !exists
}

// replayHistory delivers today's messages addressed to this name or
// broadcast to all. Delivery is direct; replayed lines are not re-routed
// or re-persisted.
func (s *Session) replayHistory(ctx context.Context, name string) {
	history, err := s.storage.HistoryForRecipient(ctx, name, s.clock.Now())
	if err != nil {
		s.logger.Error("history query failed", slog.Any("error", err))
		return
	}

	for _, msg := range history {
		replay := *msg
		if msg.Target == name {
			replay.Originator = "(from) " + msg.Originator
		}
		if err := s.Deliver(&replay); err != nil {
			return
		}
	}
}

// Classified message actions
type action int

const (
	actionBroadcast action = iota
	actionWhisper
	actionQuit
	actionDate
)

// classify inspects the first whitespace-delimited token of a raw input
// line. Classification is purely textual; a literal leading slash cannot
// be escaped.
func classify(line string) action {
	key := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		key = line[:i]
		if key == "/w" {
			return actionWhisper
		}
	}

	switch key {
	case "/q", "/quit", "/disconnect":
		return actionQuit
	case "/d":
		return actionDate
	}
	return actionBroadcast
}

// chatLoop is the active state: read, classify, dispatch, until the stream
// errors or the client quits.
func (s *Session) chatLoop(ctx context.Context) {
	for {
		line, err := s.framer.ReadMessage()
		if err != nil {
			return
		}

		switch classify(line) {
		case actionQuit:
			return
		case actionDate:
			// Recognized but unimplemented, as in the original server.
		case actionWhisper:
			s.handleWhisper(ctx, line)
		default:
			s.router.Broadcast(ctx, model.NewMessage(line, s.Identity(), s.clock.Now()))
		}
	}
}

// handleWhisper parses "/w <target> <text>", routes the whisper, and
// echoes the content back to the sender with an "(offline)" annotation
// when the target did not receive it. Lines without a target and content
// are dropped, matching the original.
func (s *Session) handleWhisper(ctx context.Context, line string) {
	parts := strings.Split(line, " ")
	if len(parts) <= 2 {
		return
	}
	target := parts[1]

	_, online := s.registry.Lookup(target)
	if !online {
		known, err := s.auth.AccountExists(ctx, target)
		if err != nil || !known {
			return
		}
	}

	firstSpace := strings.IndexByte(line, ' ')
	secondSpace := firstSpace + 1 + strings.IndexByte(line[firstSpace+1:], ' ')
	content := line[secondSpace+1:]

	delivered := s.router.Whisper(ctx, model.NewWhisper(content, s.Identity(), target, s.clock.Now()))

	echo := model.NewMessage(content, "To "+target, s.clock.Now())
	if !online || !delivered {
		echo.AddFix("(offline)")
	}
	if err := s.Deliver(echo); err != nil {
		s.logger.Warn("could not echo whisper", slog.Any("error", err))
	}
}
