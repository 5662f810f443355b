package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/croftja/parley/internal/api/response"
	"github.com/croftja/parley/internal/client"
	redisstorage "github.com/croftja/parley/internal/storage/redis"
	"github.com/croftja/parley/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app    *TestApp
	status *httptest.Server
	ctx    context.Context
	cancel context.CancelFunc
	peers  []*chatPeer
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.peers = nil

	s.Require().NoError(s.app.ChatServer.Listen())
	go func() { _ = s.app.ChatServer.Serve(s.ctx) }()

	s.status = httptest.NewServer(s.app.StatusRouter)
}

func (s *IntegrationSuite) TearDownTest() {
	for _, p := range s.peers {
		_ = p.c.Close()
	}
	s.status.Close()
	s.Require().NoError(s.app.ChatServer.Shutdown(s.ctx))
	s.cancel()
}

// chatPeer wraps a real client connected to the app's chat listener.
// Received lines accumulate so expectations can match across message
// boundaries.
type chatPeer struct {
	s   *IntegrationSuite
	c   *client.Client
	buf string
}

func (s *IntegrationSuite) connect() *chatPeer {
	cfg := client.DefaultConfig()
	cfg.Address = s.app.ChatServer.Addr().String()
	c, err := client.Dial(cfg, testutil.NopLogger())
	s.Require().NoError(err)

	p := &chatPeer{s: s, c: c}
	s.peers = append(s.peers, p)
	return p
}

func (p *chatPeer) expect(substr string) {
	timeout := time.After(2 * time.Second)
	for {
		if i := strings.Index(p.buf, substr); i >= 0 {
			p.buf = p.buf[i+len(substr):]
			return
		}
		select {
		case line, ok := <-p.c.Lines():
			if !ok {
				p.s.Require().FailNowf("connection dropped", "wanted %q, buffered %q", substr, p.buf)
			}
			p.buf += line
		case <-timeout:
			p.s.Require().FailNowf("expectation not met", "wanted %q, buffered %q", substr, p.buf)
		}
	}
}

func (p *chatPeer) submit(line string) {
	_, _, err := p.c.Submit(line)
	p.s.Require().NoError(err)
}

func (p *chatPeer) createAccount(name, password string) {
	p.expect("2: Create Account")
	p.submit("2")
	p.expect("Create username: ")
	p.submit(name)
	p.expect("Create password:")
	p.submit(password)
	p.expect("[" + name + "] has entered the chat.")
}

// login drives the login flow. Replayed history precedes the arrival
// announcement, so lines a test wants to see must be listed here before
// expect discards them.
func (p *chatPeer) login(name, password string, replay ...string) {
	p.expect("2: Create Account")
	p.submit("1")
	p.expect("Enter username: ")
	p.submit(name)
	p.expect("Enter password: ")
	p.submit(password)
	for _, line := range replay {
		p.expect(line)
	}
	p.expect("[" + name + "] has entered the chat.")
}

func (s *IntegrationSuite) fetchStatus() response.Status {
	resp, err := http.Get(s.status.URL + "/api/v1/status")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var status response.Status
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&status))
	return status
}

// Test: Complete chat flow from account creation to departure
func (s *IntegrationSuite) TestCompleteChatFlow() {
	// Step 1: Two users create accounts
	alice := s.connect()
	alice.createAccount("Alice123", "pass1")

	bob := s.connect()
	bob.createAccount("Bob4567", "pass2")
	alice.expect("[Bob4567] has entered the chat.")

	// Step 2: The status API sees both online
	status := s.fetchStatus()
	s.Equal([]string{"Alice123", "Bob4567"}, status.Online)
	s.Equal(2, status.OnlineCount)

	// Step 3: Broadcast reaches the other user
	alice.submit("hello everyone")
	bob.expect("Alice123: hello everyone")

	// Step 4: Whisper reaches only its target, annotated
	alice.submit("/w Bob4567 just between us")
	bob.expect("Alice123 whispers: just between us")
	alice.expect("To Bob4567: just between us")

	// Step 5: Quit is announced to the others
	bob.submit("quit()")
	alice.expect("(Bob4567) has left the chat.")

	status = s.fetchStatus()
	s.Equal([]string{"Alice123"}, status.Online)
}

// Test: A returning user gets today's history replayed
func (s *IntegrationSuite) TestHistoryReplayOnReturn() {
	alice := s.connect()
	alice.createAccount("Alice123", "pass1")

	bob := s.connect()
	bob.createAccount("Bob4567", "pass2")
	alice.expect("[Bob4567] has entered the chat.")

	alice.submit("remember this")
	bob.expect("Alice123: remember this")
	alice.submit("/w Bob4567 and this")
	bob.expect("Alice123 whispers: and this")

	bob.submit("quit()")
	alice.expect("(Bob4567) has left the chat.")

	bob = s.connect()
	bob.login("Bob4567", "pass2",
		"Alice123: remember this",
		"(from) Alice123: and this")
}

// Test: Whispering an offline account queues it for their next visit
func (s *IntegrationSuite) TestOfflineWhisperDeliveredLater() {
	alice := s.connect()
	alice.createAccount("Alice123", "pass1")

	bob := s.connect()
	bob.createAccount("Bob4567", "pass2")
	alice.expect("[Bob4567] has entered the chat.")
	bob.submit("quit()")
	alice.expect("(Bob4567) has left the chat.")

	alice.submit("/w Bob4567 saved for you")
	alice.expect("To Bob4567 (offline): saved for you")

	bob = s.connect()
	bob.login("Bob4567", "pass2",
		"(from) Alice123: saved for you")
}

func (s *IntegrationSuite) TestNewDefaultsToMemoryStorage() {
	app, err := New(Config{})
	s.Require().NoError(err)
	s.NotNil(app.Storage)
	s.NotNil(app.ChatServer)
	s.NotNil(app.StatusServer)
}

func (s *IntegrationSuite) TestNewWithRedisStorage() {
	mini := miniredis.RunT(s.T())

	cfg := redisstorage.DefaultConfig()
	cfg.URL = "redis://" + mini.Addr()

	app, err := New(Config{
		StorageType: StorageTypeRedis,
		RedisConfig: &cfg,
	})
	s.Require().NoError(err)
	s.IsType(&redisstorage.Storage{}, app.Storage)
}

func (s *IntegrationSuite) TestNewRejectsUnknownStorage() {
	_, err := New(Config{StorageType: "papyrus"})
	s.Error(err)
}

func (s *IntegrationSuite) TestNewRedisRequiresConfig() {
	_, err := New(Config{StorageType: StorageTypeRedis})
	s.Error(err)
}
