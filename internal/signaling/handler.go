package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event is something the relay told this participant. Events are delivered
// in the order the relay sent them.
type Event interface {
	event()
}

// Welcome carries the id the relay assigned to this connection.
type Welcome struct{ ID string }

// Members is the snapshot received after joining a room.
type Members struct {
	RoomID       string
	Members      []string
	Participants []MemberInfo
}

type PeerJoined struct{ RoomID, ID string }

type PeerLeft struct{ RoomID, ID string }

// Signal is a relayed offer, answer or candidate.
type Signal struct {
	Type    string
	From    string
	Payload json.RawMessage
}

// MediaState is a remote participant's media flag change.
type MediaState struct {
	From  string
	Audio *bool
	Video *bool
}

// ServerError is an error reported by the relay.
type ServerError struct{ Message string }

// Disconnected is always the last event. Err is nil after a local Close and
// wraps ErrTransportFailure otherwise.
type Disconnected struct{ Err error }

func (Welcome) event()      {}
func (Members) event()      {}
func (PeerJoined) event()   {}
func (PeerLeft) event()     {}
func (Signal) event()       {}
func (MediaState) event()   {}
func (ServerError) event()  {}
func (Disconnected) event() {}

// Handler turns relay messages into typed events on a single channel.
type Handler struct {
	client *Client
	events chan Event
}

// NewHandler creates a handler reading from client.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client: client,
		events: make(chan Event, 64),
	}
}

// Events returns the event stream. It is closed after Disconnected.
func (h *Handler) Events() <-chan Event {
	return h.events
}

// Start routes incoming messages until the client's connection ends.
func (h *Handler) Start() {
	defer close(h.events)

	for msg := range h.client.Incoming() {
		if ev := translate(msg); ev != nil {
			h.events <- ev
		}
	}
	h.events <- Disconnected{Err: h.client.Err()}
}

func translate(msg *Message) Event {
	switch msg.Type {
	case MessageTypeWelcome:
		var p WelcomePayload
		if err := msg.DecodePayload(&p); err != nil {
			return malformed(msg, err)
		}
		return Welcome{ID: p.ID}

	case MessageTypeMembers:
		var p MembersPayload
		if err := msg.DecodePayload(&p); err != nil {
			return malformed(msg, err)
		}
		return Members{RoomID: msg.RoomID, Members: p.Members, Participants: p.Participants}

	case MessageTypeParticipantJoined, MessageTypeParticipantLeft:
		var p ParticipantPayload
		if err := msg.DecodePayload(&p); err != nil {
			return malformed(msg, err)
		}
		if msg.Type == MessageTypeParticipantJoined {
			return PeerJoined{RoomID: msg.RoomID, ID: p.ID}
		}
		return PeerLeft{RoomID: msg.RoomID, ID: p.ID}

	case MessageTypeOffer, MessageTypeAnswer, MessageTypeCandidate:
		return Signal{Type: msg.Type, From: msg.From, Payload: msg.Payload}

	case MessageTypeMediaState:
		var p MediaStatePayload
		if err := msg.DecodePayload(&p); err != nil {
			return malformed(msg, err)
		}
		return MediaState{From: msg.From, Audio: p.Audio, Video: p.Video}

	case MessageTypeError:
		var p ErrorPayload
		if err := msg.DecodePayload(&p); err != nil || p.Error == "" {
			return ServerError{Message: "unknown error from relay"}
		}
		return ServerError{Message: p.Error}
	}

	slog.Debug("ignoring relay message", "type", msg.Type)
	return nil
}

func malformed(msg *Message, err error) Event {
	slog.Warn("malformed relay message", "type", msg.Type, "error", err)
	return ServerError{Message: "malformed " + msg.Type + " message from relay"}
}

// Channel is a connected client together with its event stream.
type Channel struct {
	*Client
	handler *Handler
}

// Dial connects to the relay and starts routing its messages.
func Dial(ctx context.Context, serverURL string, codec Codec) (*Channel, error) {
	client := NewClient(serverURL, codec)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	h := NewHandler(client)
	go h.Start()
	return &Channel{Client: client, handler: h}, nil
}

// Events returns the ordered event stream, ending with Disconnected.
func (c *Channel) Events() <-chan Event {
	return c.handler.Events()
}
