// Package peer adapts a pion PeerConnection to negotiation.Transport.
package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/warpcall/internal/connstate"
	"github.com/BioHazard786/warpcall/internal/logging"
	"github.com/BioHazard786/warpcall/internal/negotiation"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// NewAPI returns a pion API with the default codecs and pion logging routed
// through the process log level.
func NewAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	s := webrtc.SettingEngine{LoggerFactory: logging.PionFactory()}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)), nil
}

// Transport is one pion peer connection. Pion callbacks are turned into
// TransportEvents queued in the order they fire, so a slow reader never
// stalls pion.
type Transport struct {
	pc *webrtc.PeerConnection

	events chan negotiation.TransportEvent
	wake   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pending []negotiation.TransportEvent
	closed  bool
}

// New opens a peer connection sending tracks.
func New(api *webrtc.API, conf webrtc.Configuration, tracks []webrtc.TrackLocal) (*Transport, error) {
	pc, err := api.NewPeerConnection(conf)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &Transport{
		pc:     pc,
		events: make(chan negotiation.TransportEvent),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	for _, track := range tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		go drainRTCP(sender)
	}

	t.wire()
	go t.pump()
	return t, nil
}

func (t *Transport) wire() {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		b, err := json.Marshal(c.ToJSON())
		if err != nil {
			slog.Warn("encode local candidate", "error", err)
			return
		}
		t.push(negotiation.TransportEvent{Kind: negotiation.EventLocalCandidate, Candidate: b})
	})

	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		status, err := connstate.ParseConnectionStatus(s.String())
		if err != nil {
			slog.Debug("ignoring connection state", "state", s.String())
			return
		}
		t.push(negotiation.TransportEvent{Kind: negotiation.EventConnectionStatus, Connection: status})
	})

	t.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		status, err := connstate.ParsePathStatus(s.String())
		if err != nil {
			slog.Debug("ignoring ICE state", "state", s.String())
			return
		}
		t.push(negotiation.TransportEvent{Kind: negotiation.EventPathStatus, Path: status})
	})

	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		t.push(negotiation.TransportEvent{
			Kind:  negotiation.EventRemoteTrack,
			Track: negotiation.TrackInfo{ID: track.ID(), Kind: track.Kind().String()},
		})
		go drainRTP(track)
	})
}

func (t *Transport) push(ev negotiation.TransportEvent) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.pending = append(t.pending, ev)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Transport) pump() {
	defer close(t.events)

	for {
		t.mu.Lock()
		batch := t.pending
		t.pending = nil
		t.mu.Unlock()

		for _, ev := range batch {
			select {
			case t.events <- ev:
			case <-t.done:
				return
			}
		}

		select {
		case <-t.wake:
		case <-t.done:
			return
		}
	}
}

// Remote media is not played back in the terminal; reading keeps pion's
// buffers moving.
func drainRTP(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (t *Transport) CreateOffer() (signaling.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return t.local(), nil
}

func (t *Transport) CreateAnswer() (signaling.SessionDescription, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return t.local(), nil
}

func (t *Transport) local() signaling.SessionDescription {
	desc := t.pc.LocalDescription()
	return signaling.SessionDescription{Type: desc.Type.String(), SDP: desc.SDP}
}

func (t *Transport) SetRemoteDescription(desc signaling.SessionDescription) error {
	sdpType := webrtc.NewSDPType(desc.Type)
	if sdpType == webrtc.SDPTypeUnknown {
		return fmt.Errorf("unknown description type %q", desc.Type)
	}
	return t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP})
}

func (t *Transport) AddCandidate(candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}
	return t.pc.AddICECandidate(init)
}

func (t *Transport) Events() <-chan negotiation.TransportEvent {
	return t.events
}

// Close tears down the peer connection. Later calls do nothing.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.pending = nil
	t.mu.Unlock()

	close(t.done)
	if err := t.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		return err
	}
	return nil
}

var _ negotiation.Transport = (*Transport)(nil)
