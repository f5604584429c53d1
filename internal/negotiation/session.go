package negotiation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/warpcall/internal/connstate"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

// State is a session's position in the offer/answer exchange.
type State int

const (
	StateIdle State = iota
	StateOfferCreated
	StateOfferSent
	StateRemoteSet
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferCreated:
		return "offer-created"
	case StateOfferSent:
		return "offer-sent"
	case StateRemoteSet:
		return "remote-set"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Role records which side of the exchange the local participant took.
type Role int

const (
	RoleNone Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	}
	return "-"
}

// Signaler delivers a message to the relay.
type Signaler interface {
	SendMessage(msg *signaling.Message) error
}

// Update reports a change in a session's state, presented status or
// remote tracks.
type Update struct {
	Peer   string
	State  State
	Status connstate.Status
	Track  *TrackInfo
}

// Stats is a point-in-time summary of a session.
type Stats struct {
	Peer              string
	Role              Role
	State             State
	Status            connstate.Status
	CandidatesApplied int
	CandidatesQueued  int
	Tracks            []TrackInfo
}

// Session negotiates the peer connection with one remote participant.
//
// Candidates that arrive before the remote description is set are queued and
// applied in arrival order right after it is set. The queue is drained once
// and then discarded; later candidates are applied directly.
type Session struct {
	peer      string
	roomID    string
	transport Transport
	out       Signaler
	notify    func(Update)

	mu        sync.Mutex
	state     State
	role      Role
	remoteSet bool
	queue     []json.RawMessage
	tracker   connstate.Tracker

	applied int
	queued  int
	tracks  []TrackInfo
}

// NewSession creates an idle session with peer. notify may be nil.
func NewSession(peer, roomID string, transport Transport, out Signaler, notify func(Update)) *Session {
	if notify == nil {
		notify = func(Update) {}
	}
	return &Session{
		peer:      peer,
		roomID:    roomID,
		transport: transport,
		out:       out,
		notify:    notify,
	}
}

// Peer returns the remote participant's id.
func (s *Session) Peer() string {
	return s.peer
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the presented connection status.
func (s *Session) Status() connstate.Status {
	return s.tracker.Status()
}

// Pending returns the number of candidates waiting for the remote description.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Peer:              s.peer,
		Role:              s.role,
		State:             s.state,
		Status:            s.tracker.Status(),
		CandidatesApplied: s.applied,
		CandidatesQueued:  s.queued,
		Tracks:            append([]TrackInfo(nil), s.tracks...),
	}
}

// Offer starts negotiation as the offerer. It is called when the remote
// participant joins after us.
func (s *Session) Offer() error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return newError("create offer", s.peer, ErrInvalidSessionState)
	case StateIdle:
	default:
		state := s.state
		s.mu.Unlock()
		return wrapError("create offer", s.peer, ErrUnexpectedSignal, "session is "+state.String())
	}

	desc, err := s.transport.CreateOffer()
	if err != nil {
		s.mu.Unlock()
		return newError("create offer", s.peer, err)
	}
	s.state = StateOfferCreated
	s.role = RoleOfferer

	if err := s.send(signaling.MessageTypeOffer, desc); err != nil {
		s.mu.Unlock()
		s.emit()
		return newError("send offer", s.peer, err)
	}
	s.state = StateOfferSent
	s.mu.Unlock()

	s.emit()
	return nil
}

// HandleOffer accepts the remote participant's offer and answers it.
func (s *Session) HandleOffer(desc signaling.SessionDescription) error {
	s.mu.Lock()
	switch {
	case s.state == StateClosed:
		s.mu.Unlock()
		return newError("handle offer", s.peer, ErrInvalidSessionState)
	case s.state == StateOfferCreated, s.state == StateOfferSent:
		s.mu.Unlock()
		return wrapError("handle offer", s.peer, ErrUnexpectedSignal, "local offer outstanding")
	case s.remoteSet, s.state == StateFailed:
		state := s.state
		s.mu.Unlock()
		return wrapError("handle offer", s.peer, ErrUnexpectedSignal, "session is "+state.String())
	}

	if err := s.setRemote(desc); err != nil {
		s.mu.Unlock()
		return newError("set remote description", s.peer, err)
	}
	drainErr := s.drain()
	s.role = RoleAnswerer

	answer, err := s.transport.CreateAnswer()
	if err != nil {
		s.mu.Unlock()
		s.emit()
		return errors.Join(newError("create answer", s.peer, err), drainErr)
	}
	if err := s.send(signaling.MessageTypeAnswer, answer); err != nil {
		s.mu.Unlock()
		s.emit()
		return errors.Join(newError("send answer", s.peer, err), drainErr)
	}
	s.advance(StateConnecting)
	s.mu.Unlock()

	s.emit()
	return drainErr
}

// HandleAnswer accepts the answer to our outstanding offer.
func (s *Session) HandleAnswer(desc signaling.SessionDescription) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return newError("handle answer", s.peer, ErrInvalidSessionState)
	case StateOfferSent:
	default:
		state := s.state
		s.mu.Unlock()
		return wrapError("handle answer", s.peer, ErrUnexpectedSignal, "session is "+state.String())
	}

	if err := s.setRemote(desc); err != nil {
		s.mu.Unlock()
		return newError("set remote description", s.peer, err)
	}
	drainErr := s.drain()
	s.advance(StateConnecting)
	s.mu.Unlock()

	s.emit()
	return drainErr
}

// HandleCandidate queues candidate until the remote description is set and
// applies it directly afterwards.
func (s *Session) HandleCandidate(candidate json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return newError("add candidate", s.peer, ErrInvalidSessionState)
	}
	if !s.remoteSet {
		s.queue = append(s.queue, candidate)
		s.queued++
		return nil
	}
	if err := s.transport.AddCandidate(candidate); err != nil {
		return newError("add candidate", s.peer, err)
	}
	s.applied++
	return nil
}

func (s *Session) setRemote(desc signaling.SessionDescription) error {
	if err := s.transport.SetRemoteDescription(desc); err != nil {
		return err
	}
	s.remoteSet = true
	s.state = StateRemoteSet
	return nil
}

// drain applies the queued candidates in arrival order and discards the
// queue. A failing candidate does not stop the rest.
func (s *Session) drain() error {
	queue := s.queue
	s.queue = nil

	var errs []error
	for i, c := range queue {
		if err := s.transport.AddCandidate(c); err != nil {
			errs = append(errs, wrapError("apply queued candidate", s.peer, err, fmt.Sprintf("#%d", i)))
			continue
		}
		s.applied++
	}
	return errors.Join(errs...)
}

// advance moves forward to next unless the transport already reported a
// later state.
func (s *Session) advance(next State) {
	if s.state < next {
		s.state = next
	}
}

func (s *Session) send(msgType string, payload any) error {
	msg, err := signaling.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	msg.RoomID = s.roomID
	msg.To = s.peer
	return s.out.SendMessage(msg)
}

// HandleTransportEvent applies one transport notification.
func (s *Session) HandleTransportEvent(ev TransportEvent) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}

	var track *TrackInfo
	switch ev.Kind {
	case EventLocalCandidate:
		err := s.send(signaling.MessageTypeCandidate, ev.Candidate)
		s.mu.Unlock()
		if err != nil {
			slog.Warn("send candidate", "peer", s.peer, "error", err)
		}
		return

	case EventConnectionStatus:
		s.fold(s.tracker.SetConnection(ev.Connection))

	case EventPathStatus:
		s.fold(s.tracker.SetPath(ev.Path))

	case EventRemoteTrack:
		t := ev.Track
		s.tracks = append(s.tracks, t)
		track = &t
	}
	s.mu.Unlock()

	u := s.update()
	u.Track = track
	s.notify(u)
}

// fold folds the presented status into the session state. Failed is
// terminal: nothing renegotiates or revives the session.
func (s *Session) fold(status connstate.Status) {
	if s.state == StateFailed {
		return
	}
	switch status {
	case connstate.Failed:
		s.state = StateFailed
		slog.Info("peer connection failed", "peer", s.peer)
	case connstate.Connected:
		if s.remoteSet {
			s.state = StateConnected
		}
	}
}

// Run applies transport events until the transport closes its event stream.
func (s *Session) Run() {
	for ev := range s.transport.Events() {
		s.HandleTransportEvent(ev)
	}
}

// Close releases the transport and discards queued candidates. Closing an
// already closed session does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.queue = nil
	s.mu.Unlock()

	err := s.transport.Close()
	s.emit()
	if err != nil {
		return newError("close", s.peer, err)
	}
	return nil
}

func (s *Session) update() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Update{Peer: s.peer, State: s.state, Status: s.tracker.Status()}
}

func (s *Session) emit() {
	s.notify(s.update())
}
