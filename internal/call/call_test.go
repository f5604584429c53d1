package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/warpcall/internal/connstate"
	"github.com/BioHazard786/warpcall/internal/media"
	"github.com/BioHazard786/warpcall/internal/negotiation"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu     sync.Mutex
	sent   []*signaling.Message
	closed bool
	events chan signaling.Event
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan signaling.Event, 32)}
}

func (f *fakeChannel) SendMessage(msg *signaling.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) Events() <-chan signaling.Event { return f.events }

func (f *fakeChannel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeChannel) find(msgType, to string) *signaling.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.sent {
		if m.Type == msgType && m.To == to {
			return m
		}
	}
	return nil
}

type fakeTransport struct {
	mu     sync.Mutex
	offers int
	closes int
	events chan negotiation.TransportEvent
	once   sync.Once
}

func (f *fakeTransport) CreateOffer() (signaling.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	return signaling.SessionDescription{Type: "offer", SDP: "o"}, nil
}

func (f *fakeTransport) CreateAnswer() (signaling.SessionDescription, error) {
	return signaling.SessionDescription{Type: "answer", SDP: "a"}, nil
}

func (f *fakeTransport) SetRemoteDescription(signaling.SessionDescription) error { return nil }
func (f *fakeTransport) AddCandidate(json.RawMessage) error                    { return nil }
func (f *fakeTransport) Events() <-chan negotiation.TransportEvent             { return f.events }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.once.Do(func() { close(f.events) })
	return nil
}

type harness struct {
	t          *testing.T
	ch         *fakeChannel
	call       *Call
	commands   chan Command
	errc       chan error
	mu         sync.Mutex
	transports map[string]*fakeTransport
	dialed     bool
}

func start(t *testing.T, source media.Source) *harness {
	t.Helper()
	h := &harness{
		t:          t,
		ch:         newFakeChannel(),
		commands:   make(chan Command),
		errc:       make(chan error, 1),
		transports: make(map[string]*fakeTransport),
	}
	if source == nil {
		source = media.SourceFunc(func(_ context.Context, c media.Constraints) (*media.Stream, error) {
			return media.NewStream(c, "test")
		})
	}
	h.call = New(Options{
		RoomID: "abc123",
		Source: source,
		Dial: func(context.Context) (Channel, error) {
			h.mu.Lock()
			h.dialed = true
			h.mu.Unlock()
			return h.ch, nil
		},
		NewTransport: func(peer string, tracks []webrtc.TrackLocal) (negotiation.Transport, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			tr := &fakeTransport{events: make(chan negotiation.TransportEvent, 8)}
			h.transports[peer] = tr
			return tr, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { h.errc <- h.call.Run(ctx, h.commands) }()
	return h
}

func (h *harness) transport(peer string) *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transports[peer]
}

func (h *harness) waitSent(msgType, to string) *signaling.Message {
	h.t.Helper()
	var msg *signaling.Message
	require.Eventually(h.t, func() bool {
		msg = h.ch.find(msgType, to)
		return msg != nil
	}, time.Second, 5*time.Millisecond, "no %s to %q", msgType, to)
	return msg
}

func (h *harness) waitSnapshot(pred func(Snapshot) bool) Snapshot {
	h.t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case s := <-h.call.Snapshots():
			if pred(s) {
				return s
			}
		case <-deadline:
			h.t.Fatal("no matching snapshot")
		}
	}
}

func (h *harness) result() error {
	h.t.Helper()
	select {
	case err := <-h.errc:
		return err
	case <-time.After(time.Second):
		h.t.Fatal("call did not end")
		return nil
	}
}

func (h *harness) joinRoom(members ...signaling.MemberInfo) {
	h.t.Helper()
	h.ch.events <- signaling.Welcome{ID: "me"}
	join := h.waitSent(signaling.MessageTypeJoin, "")
	assert.Equal(h.t, "ABC123", join.RoomID)

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	h.ch.events <- signaling.Members{RoomID: "ABC123", Members: ids, Participants: members}
}

func TestCallFlow(t *testing.T) {
	h := start(t, nil)
	h.joinRoom(signaling.MemberInfo{ID: "A", Audio: true, Video: false})

	// The existing member offers; we answer it.
	h.ch.events <- signaling.Signal{Type: signaling.MessageTypeOffer, From: "A", Payload: json.RawMessage(`{"type":"offer","sdp":"x"}`)}
	answer := h.waitSent(signaling.MessageTypeAnswer, "A")
	assert.Equal(t, "ABC123", answer.RoomID)

	// A newcomer gets our offer.
	h.ch.events <- signaling.PeerJoined{RoomID: "ABC123", ID: "C"}
	h.waitSent(signaling.MessageTypeOffer, "C")

	h.commands <- ToggleAudio
	state := h.waitSent(signaling.MessageTypeMediaState, "")
	assert.JSONEq(t, `{"audio":false}`, string(state.Payload))

	f := false
	h.ch.events <- signaling.MediaState{From: "C", Video: &f}

	snap := h.waitSnapshot(func(s Snapshot) bool {
		return len(s.Participants) == 2 && !s.Participants[1].Video && !s.Audio
	})
	assert.Equal(t, "me", snap.SelfID)
	assert.Equal(t, "ABC123", snap.RoomID)
	assert.Equal(t, "A", snap.Participants[0].ID)
	assert.False(t, snap.Participants[0].Video)
	assert.True(t, snap.Video)

	h.commands <- Leave
	require.NoError(t, h.result())
	h.waitSent(signaling.MessageTypeLeave, "")

	summary := h.call.Summary()
	assert.Equal(t, "ABC123", summary.RoomID)
	require.Len(t, summary.Sessions, 2)
	assert.Equal(t, negotiation.RoleAnswerer, summary.Sessions[0].Role)
	assert.Equal(t, negotiation.RoleOfferer, summary.Sessions[1].Role)
	assert.Equal(t, 1, h.transport("A").closes)
	assert.True(t, h.ch.closed)
}

func TestPeerLeftClosesSession(t *testing.T) {
	h := start(t, nil)
	h.joinRoom()

	h.ch.events <- signaling.PeerJoined{ID: "B"}
	h.waitSent(signaling.MessageTypeOffer, "B")
	h.ch.events <- signaling.PeerLeft{ID: "B"}

	h.waitSnapshot(func(s Snapshot) bool { return len(s.Participants) == 0 && s.Notice == "B left" })
	require.Eventually(t, func() bool {
		tr := h.transport("B")
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.closes == 1
	}, time.Second, 5*time.Millisecond)

	h.commands <- Leave
	require.NoError(t, h.result())
}

func TestMediaFailureSendsNothing(t *testing.T) {
	h := start(t, media.SourceFunc(func(context.Context, media.Constraints) (*media.Stream, error) {
		return nil, fmt.Errorf("%w: no microphone", media.ErrAcquisitionFailed)
	}))

	err := h.result()
	assert.ErrorIs(t, err, media.ErrAcquisitionFailed)
	assert.False(t, h.dialed)
}

func TestTransportFailureEndsCall(t *testing.T) {
	h := start(t, nil)
	h.joinRoom()
	h.ch.events <- signaling.PeerJoined{ID: "B"}
	h.waitSent(signaling.MessageTypeOffer, "B")

	h.ch.events <- signaling.Disconnected{Err: fmt.Errorf("%w: EOF", signaling.ErrTransportFailure)}
	err := h.result()
	assert.ErrorIs(t, err, signaling.ErrTransportFailure)
	assert.Equal(t, 1, h.transport("B").closes)
}

func TestNegotiationFailureIsReported(t *testing.T) {
	h := start(t, nil)
	h.joinRoom()
	h.ch.events <- signaling.PeerJoined{ID: "B"}
	h.waitSent(signaling.MessageTypeOffer, "B")
	h.ch.events <- signaling.Signal{Type: signaling.MessageTypeAnswer, From: "B", Payload: json.RawMessage(`{"type":"answer","sdp":"y"}`)}
	h.waitSnapshot(func(s Snapshot) bool {
		return len(s.Participants) == 1 && s.Participants[0].State == negotiation.StateConnecting
	})

	tr := h.transport("B")
	tr.events <- negotiation.TransportEvent{Kind: negotiation.EventConnectionStatus, Connection: connstate.ConnectionFailed}

	snap := h.waitSnapshot(func(s Snapshot) bool { return errors.Is(s.Err, ErrNegotiationFailed) })
	assert.ErrorIs(t, snap.Err, ErrNegotiationFailed)
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, connstate.Failed, snap.Participants[0].Status)
	assert.Equal(t, negotiation.StateFailed, snap.Participants[0].State)

	h.commands <- Leave
	require.NoError(t, h.result())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, 1, tr.offers, "failed sessions are not renegotiated")
}

func TestRelayErrorBeforeJoin(t *testing.T) {
	h := start(t, nil)
	h.ch.events <- signaling.Welcome{ID: "me"}
	h.waitSent(signaling.MessageTypeJoin, "")
	h.ch.events <- signaling.ServerError{Message: "room_id is required"}

	err := h.result()
	assert.ErrorContains(t, err, "room_id is required")
}

func TestEmptyRoomID(t *testing.T) {
	c := New(Options{RoomID: "   "})
	assert.Error(t, c.Run(context.Background(), nil))
}
