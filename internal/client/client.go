// Package client implements the companion chat client: a duplex TCP
// peer with optional payload obfuscation and local command handling.
package client

import (
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/croftja/parley/internal/protocol"
)

// Config holds configuration for the chat client
type Config struct {
	Address     string
	DialTimeout time.Duration
}

// DefaultConfig returns sensible defaults for client configuration
func DefaultConfig() Config {
	return Config{
		Address:     "localhost:1234",
		DialTimeout: 10 * time.Second,
	}
}

// Client owns one connection to a chat server. Received lines surface
// on Lines; outbound lines go through Send, which hands off to a single
// writer goroutine via a depth-1 channel, so at most one message is
// queued and a second Send blocks until the first is on the wire.
type Client struct {
	conn       net.Conn
	framer     *protocol.Framer
	obfuscator *protocol.Obfuscator
	logger     *slog.Logger

	outgoing chan string
	lines    chan string
	done     chan struct{}
	closer   sync.Once

	mu        sync.Mutex
	obfuscate bool
	skipNext  bool
}

// Dial connects to the server and starts the receive and send loops.
func Dial(cfg Config, logger *slog.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", cfg.Address, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	return New(conn, logger), nil
}

// New wraps an established connection. Used directly by tests; normal
// callers go through Dial.
func New(conn net.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:       conn,
		framer:     protocol.NewFramer(conn),
		obfuscator: protocol.NewObfuscator(nil),
		logger:     logger.With(slog.String("component", "client")),
		outgoing:   make(chan string, 1),
		lines:      make(chan string, 16),
		done:       make(chan struct{}),
	}

	go c.recvLoop()
	go c.sendLoop()

	return c
}

// Lines returns the channel of received messages, decoded when
// obfuscation mode is on. It is closed when the connection drops.
func (c *Client) Lines() <-chan string {
	return c.lines
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection down and stops both loops.
func (c *Client) Close() error {
	c.closer.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

// Send queues one message for the writer goroutine. It blocks while a
// previous message is still queued and fails once the client is closed.
func (c *Client) Send(line string) error {
	// Checked first: the enqueue below is always ready while the buffer
	// has room, and the writer is gone once done is closed.
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}

	select {
	case c.outgoing <- line:
		return nil
	case <-c.done:
		return net.ErrClosed
	}
}

// ToggleObfuscation flips obfuscation mode for both directions and
// returns the new state.
func (c *Client) ToggleObfuscation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obfuscate = !c.obfuscate
	return c.obfuscate
}

// SkipNextEncode suppresses encoding for the next message only, so a
// whisper target or an explicitly plain line stays readable on a server
// that relays it verbatim.
func (c *Client) SkipNextEncode() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipNext = true
}

func (c *Client) decodeEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.obfuscate
}

// consumeEncodeState reports whether the next outbound message is
// encoded, clearing the one-shot skip flag either way.
func (c *Client) consumeEncodeState() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	encode := c.obfuscate && !c.skipNext
	c.skipNext = false
	return encode
}

func (c *Client) recvLoop() {
	defer close(c.lines)
	for {
		msg, err := c.framer.ReadMessage()
		if err != nil {
			_ = c.Close()
			return
		}

		if c.decodeEnabled() {
			msg = string(c.obfuscator.Decode([]byte(msg)))
		}

		select {
		case c.lines <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) sendLoop() {
	for {
		select {
		case <-c.done:
			return
		case line := <-c.outgoing:
			payload := []byte(line)
			if c.consumeEncodeState() {
				payload = c.obfuscator.Encode(payload)
			}
			if err := c.framer.WriteBytes(payload); err != nil {
				c.logger.Warn("send failed", slog.Any("error", err))
				_ = c.Close()
				return
			}
		}
	}
}

// Local commands handled without a round trip to the server
const (
	cmdMode       = ".mode"
	cmdQuit       = "quit()"
	cmdQuitDot    = ".quit"
	cmdDisconnect = "disconnect()"
	cmdDiscDot    = ".disconnect"
	cmdWhisper    = "/w"
	cmdNoEncode   = "/noe"

	noticeEncoded = "Changed mode to encoded r/w."
	noticePlain   = "Changed mode to regular r/w."
)

// Submit interprets one line of user input. Setting commands act locally
// and send nothing; send modifiers adjust the next message and fall
// through to sending; anything else is sent as-is. A non-empty notice
// should be shown to the user.
func (c *Client) Submit(line string) (notice string, quit bool, err error) {
	key := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		key = line[:i]
	}

	switch key {
	case cmdMode:
		if c.ToggleObfuscation() {
			return noticeEncoded, false, nil
		}
		return noticePlain, false, nil
	case cmdQuit, cmdQuitDot, cmdDisconnect, cmdDiscDot:
		return "", true, c.Close()
	case cmdWhisper:
		// The whisper prefix must reach the server readable; the target
		// name is parsed there.
		c.SkipNextEncode()
	case cmdNoEncode:
		c.SkipNextEncode()
		line = strings.TrimPrefix(line, cmdNoEncode)
		line = strings.TrimPrefix(line, " ")
		if line == "" {
			return "", false, nil
		}
	}

	return "", false, c.Send(line)
}
