package signaling

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope for every websocket frame between a participant and
// the relay, in both directions. Payload is opaque to the relay: it is
// forwarded without re-interpretation, with only From stamped on the envelope.
type Message struct {
	Type    string          `json:"type" msgpack:"type"`
	RoomID  string          `json:"room_id,omitempty" msgpack:"room_id,omitempty"`
	From    string          `json:"from,omitempty" msgpack:"from,omitempty"`
	To      string          `json:"to,omitempty" msgpack:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Message type constants.
const (
	// client -> relay
	MessageTypeJoin  = "join"
	MessageTypeLeave = "leave"

	// relay -> client
	MessageTypeWelcome           = "welcome"
	MessageTypeMembers           = "members"
	MessageTypeParticipantJoined = "participant_joined"
	MessageTypeParticipantLeft   = "participant_left"
	MessageTypeError             = "error"

	// client -> relay -> other members
	MessageTypeOffer      = "offer"
	MessageTypeAnswer     = "answer"
	MessageTypeCandidate  = "candidate"
	MessageTypeMediaState = "media_state"
)

// IsRelayed reports whether messages of type t are forwarded between members.
func IsRelayed(t string) bool {
	switch t {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeCandidate, MessageTypeMediaState:
		return true
	}
	return false
}

// WelcomePayload tells a participant its relay-assigned connection id.
type WelcomePayload struct {
	ID string `json:"id"`
}

// ParticipantPayload names a single participant.
type ParticipantPayload struct {
	ID string `json:"id"`
}

// MemberInfo describes one member in a members snapshot.
type MemberInfo struct {
	ID    string `json:"id"`
	Audio bool   `json:"audio"`
	Video bool   `json:"video"`
}

// MembersPayload is the snapshot sent to a joining participant.
type MembersPayload struct {
	Members      []string     `json:"members"`
	Participants []MemberInfo `json:"participants,omitempty"`
}

// SessionDescription is an SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// MediaStatePayload advertises audio/video flags; absent fields are unchanged.
type MediaStatePayload struct {
	Audio *bool `json:"audio,omitempty"`
	Video *bool `json:"video,omitempty"`
}

// ErrorPayload represents error messages from the relay.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage creates a Message of type t with payload marshaled to JSON.
func NewMessage(t string, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload == nil {
		return msg, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	msg.Payload = b
	return msg, nil
}

// ErrorMessage builds an error frame for the relay to send back to a client.
func ErrorMessage(text string) *Message {
	b, _ := json.Marshal(ErrorPayload{Error: text})
	return &Message{Type: MessageTypeError, Payload: b}
}

// DecodePayload decodes the message payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Forward returns a copy of m with the sender stamped on it. The payload
// slice is shared, not re-encoded.
func (m *Message) Forward(from string) *Message {
	out := *m
	out.From = from
	return &out
}
