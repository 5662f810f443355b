// Package protocol implements the wire framing and the payload obfuscation
// codec shared by the server and the companion client.
//
// The wire format is deliberately simple: each logical message is at most
// MaxFrameSize bytes of UTF-8 text sent in a single write, with no length
// prefix or terminator. The reader performs one blocking receive per logical
// message and truncates at the first NUL byte, which holds as long as both
// sides exchange exactly one message per read.
package protocol

import (
	"bytes"
	"io"

	"github.com/croftja/parley/internal/model"
)

// MaxFrameSize is the fixed receive buffer size; no logical message may
// exceed it.
const MaxFrameSize = 1024

// Framer reads and writes discrete text messages over a byte stream.
// It is not safe for concurrent use; callers serialize access per direction.
type Framer struct {
	rw  io.ReadWriter
	buf [MaxFrameSize]byte
}

// NewFramer creates a Framer over the given stream, typically a net.Conn.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{rw: rw}
}

// ReadMessage performs one blocking receive and returns the message text.
// The message ends at the first NUL byte if one is present in the received
// data. A read that fills the whole buffer without containing a NUL is
// treated as malformed and the connection should be torn down.
func (f *Framer) ReadMessage() (string, error) {
	n, err := f.rw.Read(f.buf[:])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return "", err
	}

	data := f.buf[:n]
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	} else if n == MaxFrameSize {
		return "", model.ErrMalformedFrame
	}

	return string(data), nil
}

// WriteMessage encodes text as UTF-8 and sends it in a single write.
func (f *Framer) WriteMessage(text string) error {
	return f.WriteBytes([]byte(text))
}

// WriteBytes sends a pre-encoded payload in a single write.
func (f *Framer) WriteBytes(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return model.ErrMessageTooLong
	}
	_, err := f.rw.Write(payload)
	return err
}
