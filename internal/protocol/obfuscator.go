package protocol

import "strings"

// ExemptionRule decides whether an inbound message must pass through
// undecoded. The stock rule is a content heuristic matched against the
// system messages the server emits; isolating it behind an interface lets
// a future revision switch to an explicit message-kind tag without touching
// callers.
type ExemptionRule interface {
	Exempt(msg string) bool
}

// MarkerExemption is the stock heuristic: a message is exempt from decoding
// if it contains "whisper" anywhere, its first word is one of the known
// system markers, or its second word mentions the weather announcer.
//
// The heuristic is matched on content and can misfire on user text that
// happens to look like a system line; that is a known limitation carried
// for behavioral compatibility, not something to correct here.
type MarkerExemption struct{}

var firstWordMarkers = map[string]bool{
	"welcome":  true,
	"Enter":    true,
	"Username": true,
}

// Exempt reports whether msg must not be decoded. Messages with fewer than
// two space-delimited words are always exempt.
func (MarkerExemption) Exempt(msg string) bool {
	words := strings.Split(msg, " ")
	if len(words) < 2 {
		return true
	}
	if strings.Contains(msg, "whisper") {
		return true
	}
	if firstWordMarkers[words[0]] {
		return true
	}
	if strings.Contains(words[1], "Weather") {
		return true
	}
	return false
}

// Obfuscator applies the per-byte additive transform to chat payloads.
// It is stateless; the per-connection mode and skip flags live with the
// client connection that owns it.
type Obfuscator struct {
	rule ExemptionRule
}

// NewObfuscator creates an Obfuscator with the given exemption rule,
// defaulting to MarkerExemption.
func NewObfuscator(rule ExemptionRule) *Obfuscator {
	if rule == nil {
		rule = MarkerExemption{}
	}
	return &Obfuscator{rule: rule}
}

// Encode adds one to every byte of the payload, wrapping at 255.
// Applied to whole outbound payloads before they hit the wire.
func (o *Obfuscator) Encode(payload []byte) []byte {
	out := make([]byte, len(payload))
	for i, b := range payload {
		out[i] = b + 1
	}
	return out
}

// Decode reverses the transform on the region following the second space,
// unless the message is exempt. The region before the second space is the
// plaintext prefix the server prepends and is left untouched. Bytes already
// at zero are never decremented, so a payload that was clamped does not
// round-trip exactly; that lossy edge is accepted.
func (o *Obfuscator) Decode(payload []byte) []byte {
	msg := string(payload)
	if o.rule.Exempt(msg) {
		return payload
	}

	// With exactly two words there is no second space and the whole
	// payload is decoded, matching the original transform.
	start := 0
	first := strings.IndexByte(msg, ' ')
	if second := strings.IndexByte(msg[first+1:], ' '); second >= 0 {
		start = first + 1 + second + 1
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	for i := start; i < len(out); i++ {
		if out[i] > 0 {
			out[i]--
		}
	}
	return out
}
