package negotiation

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

// TransportFactory opens a new peer transport for the remote participant.
type TransportFactory func(peer string) (Transport, error)

// Manager keeps one Session per remote participant in a room.
type Manager struct {
	roomID       string
	out          Signaler
	newTransport TransportFactory

	mu       sync.Mutex
	sessions map[string]*Session
	all      []*Session
	departed map[string]bool
	closed   bool

	updates chan Update
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a manager for roomID. Sessions send through out.
func NewManager(roomID string, out Signaler, newTransport TransportFactory) *Manager {
	return &Manager{
		roomID:       roomID,
		out:          out,
		newTransport: newTransport,
		sessions:     make(map[string]*Session),
		departed:     make(map[string]bool),
		updates:      make(chan Update, 64),
		done:         make(chan struct{}),
	}
}

// Updates streams session updates. It is closed by Close once every session
// has stopped.
func (m *Manager) Updates() <-chan Update {
	return m.updates
}

func (m *Manager) publish(u Update) {
	select {
	case m.updates <- u:
	case <-m.done:
	}
}

// session returns the session with peer, opening one if needed.
func (m *Manager) session(peer string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.departed[peer] {
		return nil, newError("open session", peer, ErrInvalidSessionState)
	}
	if s, ok := m.sessions[peer]; ok {
		return s, nil
	}

	transport, err := m.newTransport(peer)
	if err != nil {
		return nil, newError("open transport", peer, err)
	}
	s := NewSession(peer, m.roomID, transport, m.out, m.publish)
	m.sessions[peer] = s
	m.all = append(m.all, s)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.Run()
	}()
	return s, nil
}

// Session returns the live session with peer.
func (m *Manager) Session(peer string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[peer]
	return s, ok
}

// PeerJoined opens a session with a participant that joined after us and
// sends it an offer.
func (m *Manager) PeerJoined(peer string) error {
	s, err := m.session(peer)
	if err != nil {
		return err
	}
	return s.Offer()
}

// PeerLeft closes the session with peer. Signals that arrive from it later
// are refused.
func (m *Manager) PeerLeft(peer string) error {
	m.mu.Lock()
	s, ok := m.sessions[peer]
	delete(m.sessions, peer)
	m.departed[peer] = true
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// HandleSignal routes a relayed offer, answer or candidate to the session
// with its sender.
func (m *Manager) HandleSignal(from, msgType string, payload json.RawMessage) error {
	if from == "" {
		return wrapError("handle "+msgType, from, ErrUnexpectedSignal, "missing sender")
	}

	switch msgType {
	case signaling.MessageTypeOffer, signaling.MessageTypeAnswer:
		var desc signaling.SessionDescription
		if err := json.Unmarshal(payload, &desc); err != nil {
			return wrapError("handle "+msgType, from, err, "malformed description")
		}
		if desc.Type == "" {
			desc.Type = msgType
		}
		if desc.Type != msgType {
			return wrapError("handle "+msgType, from, ErrUnexpectedSignal, fmt.Sprintf("description type %q", desc.Type))
		}

		if msgType == signaling.MessageTypeAnswer {
			s, ok := m.Session(from)
			if !ok {
				return wrapError("handle answer", from, ErrUnexpectedSignal, "no offer sent")
			}
			return s.HandleAnswer(desc)
		}
		s, err := m.session(from)
		if err != nil {
			return err
		}
		return s.HandleOffer(desc)

	case signaling.MessageTypeCandidate:
		if len(payload) == 0 {
			return wrapError("handle candidate", from, ErrUnexpectedSignal, "empty candidate")
		}
		s, err := m.session(from)
		if err != nil {
			return err
		}
		return s.HandleCandidate(payload)
	}

	return wrapError("handle signal", from, ErrUnexpectedSignal, msgType)
}

// Stats summarizes every session the manager opened, in opening order,
// including those closed since.
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	sessions := slices.Clone(m.all)
	m.mu.Unlock()

	stats := make([]Stats, 0, len(sessions))
	for _, s := range sessions {
		stats = append(stats, s.Stats())
	}
	return stats
}

// Close closes every session and waits for their event loops to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := slices.Clone(m.all)
	m.mu.Unlock()

	// Nobody may be reading updates any more.
	close(m.done)

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	m.wg.Wait()
	close(m.updates)
	return errors.Join(errs...)
}
