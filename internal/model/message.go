package model

import (
	"fmt"
	"time"
)

// TargetAll is the sentinel target for messages delivered via broadcast
// rather than whisper routing.
const TargetAll = "all"

// Message is one routed chat line: user content plus the originator,
// the target (TargetAll or a display name) and the server-side timestamp.
type Message struct {
	Content    string    `json:"content"`
	Originator string    `json:"originator"`
	Target     string    `json:"target"`
	Fix        string    `json:"fix,omitempty"`
	Time       time.Time `json:"time"`
}

// NewMessage creates a broadcast message stamped with the given time.
func NewMessage(content, originator string, t time.Time) *Message {
	return &Message{
		Content:    content,
		Originator: originator,
		Target:     TargetAll,
		Time:       t,
	}
}

// NewWhisper creates a message addressed to a single display name.
func NewWhisper(content, originator, target string, t time.Time) *Message {
	return &Message{
		Content:    content,
		Originator: originator,
		Target:     target,
		Time:       t,
	}
}

// AddFix attaches an annotation such as "whispers" or "(offline)" that is
// rendered between the originator and the content.
func (m *Message) AddFix(fix string) {
	m.Fix = " " + fix
}

// Assemble renders the wire form: timestamp, originator, optional fix,
// then the content.
func (m *Message) Assemble() string {
	return fmt.Sprintf("[%s] %s%s: %s", m.Time.Format("2006-01-02 15:04:05"), m.Originator, m.Fix, m.Content)
}
