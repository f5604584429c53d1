package negotiation

import (
	"encoding/json"

	"github.com/BioHazard786/warpcall/internal/connstate"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

// Transport is the peer connection a session drives. CreateOffer and
// CreateAnswer also install the result as the local description.
type Transport interface {
	CreateOffer() (signaling.SessionDescription, error)
	CreateAnswer() (signaling.SessionDescription, error)
	SetRemoteDescription(desc signaling.SessionDescription) error
	AddCandidate(candidate json.RawMessage) error

	// Events delivers transport notifications in the order they occurred.
	// It is closed after Close.
	Events() <-chan TransportEvent

	Close() error
}

// EventKind identifies a TransportEvent.
type EventKind int

const (
	// EventLocalCandidate carries a locally gathered candidate to send to
	// the remote participant.
	EventLocalCandidate EventKind = iota
	EventConnectionStatus
	EventPathStatus
	EventRemoteTrack
)

func (k EventKind) String() string {
	switch k {
	case EventLocalCandidate:
		return "local-candidate"
	case EventConnectionStatus:
		return "connection-status"
	case EventPathStatus:
		return "path-status"
	case EventRemoteTrack:
		return "remote-track"
	}
	return "unknown"
}

// TransportEvent is one notification from a Transport. Only the field
// matching Kind is set.
type TransportEvent struct {
	Kind       EventKind
	Candidate  json.RawMessage
	Connection connstate.ConnectionStatus
	Path       connstate.PathStatus
	Track      TrackInfo
}

// TrackInfo describes a remote media track.
type TrackInfo struct {
	ID   string
	Kind string
}
