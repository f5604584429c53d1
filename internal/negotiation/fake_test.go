package negotiation

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

var errRejected = errors.New("rejected by transport")

// fakeTransport records every call in order and replays scripted events.
type fakeTransport struct {
	mu     sync.Mutex
	calls  []string
	closes int

	failRemote    bool
	failCandidate map[string]bool

	events    chan TransportEvent
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failCandidate: make(map[string]bool),
		events:        make(chan TransportEvent, 16),
	}
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) CreateOffer() (signaling.SessionDescription, error) {
	f.record("create-offer")
	return signaling.SessionDescription{Type: "offer", SDP: "local-offer"}, nil
}

func (f *fakeTransport) CreateAnswer() (signaling.SessionDescription, error) {
	f.record("create-answer")
	return signaling.SessionDescription{Type: "answer", SDP: "local-answer"}, nil
}

func (f *fakeTransport) SetRemoteDescription(desc signaling.SessionDescription) error {
	if f.failRemote {
		return errRejected
	}
	f.record("set-remote:" + desc.Type)
	return nil
}

func (f *fakeTransport) AddCandidate(candidate json.RawMessage) error {
	if f.failCandidate[string(candidate)] {
		return errRejected
	}
	f.record("add:" + string(candidate))
	return nil
}

func (f *fakeTransport) Events() <-chan TransportEvent {
	return f.events
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeTransport) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// outbox records messages a session sends to the relay.
type outbox struct {
	mu   sync.Mutex
	msgs []*signaling.Message
	err  error
}

func (o *outbox) SendMessage(msg *signaling.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) Sent() []*signaling.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*signaling.Message(nil), o.msgs...)
}

func (o *outbox) Types() []string {
	var types []string
	for _, m := range o.Sent() {
		types = append(types, m.Type+">"+m.To)
	}
	return types
}

func candidate(s string) json.RawMessage {
	return json.RawMessage(`"` + s + `"`)
}

func description(t string) signaling.SessionDescription {
	return signaling.SessionDescription{Type: t, SDP: "remote-" + t}
}
