package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/croftja/parley/internal/protocol"
	"github.com/croftja/parley/internal/testutil"
)

type ClientSuite struct {
	suite.Suite
	client *Client
	server *protocol.Framer
	conn   net.Conn
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	serverConn, clientConn := net.Pipe()
	s.conn = serverConn
	s.server = protocol.NewFramer(serverConn)
	s.client = New(clientConn, testutil.NopLogger())
}

func (s *ClientSuite) TearDownTest() {
	_ = s.client.Close()
	_ = s.conn.Close()
}

// serverRead pulls one raw message off the server side of the pipe.
func (s *ClientSuite) serverRead() string {
	type result struct {
		msg string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := s.server.ReadMessage()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		s.Require().NoError(r.err)
		return r.msg
	case <-time.After(time.Second):
		s.FailNow("timed out reading from client")
		return ""
	}
}

func (s *ClientSuite) receive() string {
	select {
	case line, ok := <-s.client.Lines():
		s.Require().True(ok, "lines channel closed")
		return line
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for line")
		return ""
	}
}

func (s *ClientSuite) TestSendPlain() {
	s.Require().NoError(s.client.Send("hello"))
	s.Equal("hello", s.serverRead())
}

func (s *ClientSuite) TestReceivePlain() {
	go func() {
		_ = s.server.WriteMessage("[2024-01-01 12:00:00] Alice123: hi")
	}()
	s.Equal("[2024-01-01 12:00:00] Alice123: hi", s.receive())
}

func (s *ClientSuite) TestObfuscatedSend() {
	s.True(s.client.ToggleObfuscation())

	s.Require().NoError(s.client.Send("abc"))
	s.Equal("bcd", s.serverRead())
}

func (s *ClientSuite) TestToggleBackToPlain() {
	s.True(s.client.ToggleObfuscation())
	s.False(s.client.ToggleObfuscation())

	s.Require().NoError(s.client.Send("abc"))
	s.Equal("abc", s.serverRead())
}

func (s *ClientSuite) TestSkipNextEncodeIsOneShot() {
	s.client.ToggleObfuscation()
	s.client.SkipNextEncode()

	s.Require().NoError(s.client.Send("abc"))
	s.Equal("abc", s.serverRead())

	s.Require().NoError(s.client.Send("abc"))
	s.Equal("bcd", s.serverRead())
}

func (s *ClientSuite) TestObfuscatedReceiveDecodes() {
	s.client.ToggleObfuscation()

	// Payload region after the second space arrives shifted by one.
	go func() {
		_ = s.server.WriteMessage("hdr1 hdr2 bcd")
	}()
	s.Equal("hdr1 hdr2 abc", s.receive())
}

func (s *ClientSuite) TestExemptLineNotDecoded() {
	s.client.ToggleObfuscation()

	go func() {
		_ = s.server.WriteMessage("Enter password: ")
	}()
	s.Equal("Enter password: ", s.receive())
}

func (s *ClientSuite) TestSubmitModeCommand() {
	notice, quit, err := s.client.Submit(".mode")
	s.Require().NoError(err)
	s.False(quit)
	s.Equal("Changed mode to encoded r/w.", notice)

	notice, _, err = s.client.Submit(".mode")
	s.Require().NoError(err)
	s.Equal("Changed mode to regular r/w.", notice)
}

func (s *ClientSuite) TestSubmitQuitCommands() {
	for _, cmd := range []string{"quit()", ".quit", "disconnect()", ".disconnect"} {
		s.Run(cmd, func() {
			serverConn, clientConn := net.Pipe()
			defer serverConn.Close()
			c := New(clientConn, testutil.NopLogger())

			_, quit, err := c.Submit(cmd)
			s.Require().NoError(err)
			s.True(quit)
			s.ErrorIs(c.Send("after"), net.ErrClosed)
		})
	}
}

func (s *ClientSuite) TestSubmitWhisperSkipsEncodeOnce() {
	s.client.ToggleObfuscation()

	_, quit, err := s.client.Submit("/w Bob4567 psst")
	s.Require().NoError(err)
	s.False(quit)
	s.Equal("/w Bob4567 psst", s.serverRead())

	s.Require().NoError(s.client.Send("abc"))
	s.Equal("bcd", s.serverRead())
}

func (s *ClientSuite) TestSubmitNoEncodeStripsPrefix() {
	s.client.ToggleObfuscation()

	_, _, err := s.client.Submit("/noe plain text")
	s.Require().NoError(err)
	s.Equal("plain text", s.serverRead())
}

func (s *ClientSuite) TestSubmitBareNoEncodeSendsNothing() {
	_, quit, err := s.client.Submit("/noe")
	s.Require().NoError(err)
	s.False(quit)

	// Nothing was queued; a follow-up send is the next thing on the wire.
	s.Require().NoError(s.client.Send("next"))
	s.Equal("next", s.serverRead())
}

func (s *ClientSuite) TestSubmitPlainLineSends() {
	_, quit, err := s.client.Submit("hello everyone")
	s.Require().NoError(err)
	s.False(quit)
	s.Equal("hello everyone", s.serverRead())
}

// Sending after Close must fail every time, not just when the closed
// done channel happens to win the select against the free send buffer.
func (s *ClientSuite) TestSendAfterCloseAlwaysFails() {
	s.Require().NoError(s.client.Close())

	for i := 0; i < 100; i++ {
		s.Require().ErrorIs(s.client.Send("dropped"), net.ErrClosed)
	}
}

func (s *ClientSuite) TestLinesClosedWhenServerDrops() {
	_ = s.conn.Close()

	select {
	case _, ok := <-s.client.Lines():
		s.False(ok)
	case <-time.After(time.Second):
		s.FailNow("lines channel not closed")
	}
}
