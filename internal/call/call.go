// Package call runs one participant's side of a call: it joins a room, keeps
// the roster and drives one negotiation session per remote participant.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/BioHazard786/warpcall/internal/connstate"
	"github.com/BioHazard786/warpcall/internal/media"
	"github.com/BioHazard786/warpcall/internal/negotiation"
	"github.com/BioHazard786/warpcall/internal/room"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// ErrNegotiationFailed is reported when a peer connection fails. The
// session is not renegotiated.
var ErrNegotiationFailed = errors.New("negotiation failed")

// Channel is the signaling channel to the relay.
type Channel interface {
	SendMessage(msg *signaling.Message) error
	Events() <-chan signaling.Event
	Close()
}

// Dialer opens the signaling channel.
type Dialer func(ctx context.Context) (Channel, error)

// TransportFactory opens a peer transport to peer that sends tracks.
type TransportFactory func(peer string, tracks []webrtc.TrackLocal) (negotiation.Transport, error)

// Command is a user action during the call.
type Command int

const (
	ToggleAudio Command = iota
	ToggleVideo
	Leave
)

type Options struct {
	RoomID       string
	Source       media.Source
	Constraints  media.Constraints
	Dial         Dialer
	NewTransport TransportFactory
}

// Participant is a roster entry.
type Participant struct {
	ID     string
	Audio  bool
	Video  bool
	Status connstate.Status
	State  negotiation.State
}

// Snapshot is the call as the view should show it.
type Snapshot struct {
	RoomID       string
	SelfID       string
	Audio        bool
	Video        bool
	Participants []Participant
	Notice       string
	Err          error
}

// Summary describes a finished call.
type Summary struct {
	RoomID   string
	SelfID   string
	Duration time.Duration
	Sessions []negotiation.Stats
}

// Call is one participant's call.
type Call struct {
	opts Options

	ch      Channel
	stream  *media.Stream
	manager *negotiation.Manager

	selfID  string
	roomID  string
	roster  map[string]*Participant
	order   []string
	started time.Time
	ended   time.Time

	snapshots chan Snapshot
	notice    string
	lastErr   error
}

// New prepares a call. Nothing happens until Run.
func New(opts Options) *Call {
	if opts.Constraints == (media.Constraints{}) {
		opts.Constraints = media.Constraints{Audio: true, Video: true}
	}
	return &Call{
		opts:      opts,
		roomID:    room.NormalizeID(opts.RoomID),
		roster:    make(map[string]*Participant),
		snapshots: make(chan Snapshot, 1),
	}
}

// Snapshots delivers the latest state of the call. Older snapshots are
// replaced when the reader falls behind.
func (c *Call) Snapshots() <-chan Snapshot {
	return c.snapshots
}

// Run acquires media, joins the room and serves the call until ctx ends,
// a Leave command arrives or the signaling channel is lost.
func (c *Call) Run(ctx context.Context, commands <-chan Command) error {
	if c.roomID == "" {
		return errors.New("room id is required")
	}

	stream, err := c.opts.Source.Acquire(ctx, c.opts.Constraints)
	if err != nil {
		return err
	}
	c.stream = stream
	defer stream.Close()

	ch, err := c.opts.Dial(ctx)
	if err != nil {
		return err
	}
	c.ch = ch
	defer ch.Close()

	if err := c.join(ctx); err != nil {
		return err
	}

	c.manager = negotiation.NewManager(c.roomID, ch, func(peer string) (negotiation.Transport, error) {
		return c.opts.NewTransport(peer, stream.Tracks())
	})
	defer c.manager.Close()

	c.started = time.Now()
	defer func() { c.ended = time.Now() }()
	c.publish()

	return c.loop(ctx, commands)
}

// join waits for the relay's welcome, joins the room and records the members
// snapshot. Existing members offer to us, so nothing is sent to them.
func (c *Call) join(ctx context.Context) error {
	welcome, err := await[signaling.Welcome](ctx, c.ch.Events())
	if err != nil {
		return err
	}
	c.selfID = welcome.ID

	if err := c.ch.SendMessage(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: c.roomID}); err != nil {
		return err
	}

	members, err := await[signaling.Members](ctx, c.ch.Events())
	if err != nil {
		return err
	}
	if members.RoomID != "" {
		c.roomID = members.RoomID
	}
	for _, info := range members.Participants {
		p := c.add(info.ID)
		p.Audio, p.Video = info.Audio, info.Video
	}
	for _, id := range members.Members {
		c.add(id)
	}
	slog.Info("joined room", "room", c.roomID, "self", c.selfID, "members", len(members.Members))
	return nil
}

// await returns the next event of type T. A relay error or a lost channel
// ends the wait.
func await[T signaling.Event](ctx context.Context, events <-chan signaling.Event) (T, error) {
	var zero T
	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return zero, fmt.Errorf("%w: channel closed", signaling.ErrTransportFailure)
			}
			switch e := ev.(type) {
			case T:
				return e, nil
			case signaling.ServerError:
				return zero, fmt.Errorf("relay: %s", e.Message)
			case signaling.Disconnected:
				return zero, disconnectErr(e)
			}
		}
	}
}

func disconnectErr(e signaling.Disconnected) error {
	if e.Err != nil {
		return e.Err
	}
	return fmt.Errorf("%w: connection closed", signaling.ErrTransportFailure)
}

func (c *Call) loop(ctx context.Context, commands <-chan Command) error {
	events := c.ch.Events()
	updates := c.manager.Updates()

	for {
		select {
		case <-ctx.Done():
			c.leave()
			return nil

		case cmd, ok := <-commands:
			if !ok || cmd == Leave {
				c.leave()
				return nil
			}
			c.toggle(cmd)

		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			c.applyUpdate(u)

		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("%w: channel closed", signaling.ErrTransportFailure)
			}
			if dc, isDisconnect := ev.(signaling.Disconnected); isDisconnect {
				c.fail(disconnectErr(dc))
				return disconnectErr(dc)
			}
			c.handle(ev)
		}
		c.publish()
	}
}

func (c *Call) handle(ev signaling.Event) {
	switch e := ev.(type) {
	case signaling.PeerJoined:
		c.add(e.ID)
		c.notice = e.ID + " joined"
		if err := c.manager.PeerJoined(e.ID); err != nil {
			c.fail(err)
		}

	case signaling.PeerLeft:
		c.remove(e.ID)
		c.notice = e.ID + " left"
		if err := c.manager.PeerLeft(e.ID); err != nil {
			c.fail(err)
		}

	case signaling.Signal:
		if err := c.manager.HandleSignal(e.From, e.Type, e.Payload); err != nil {
			c.fail(err)
		}

	case signaling.MediaState:
		p, ok := c.roster[e.From]
		if !ok {
			return
		}
		if e.Audio != nil {
			p.Audio = *e.Audio
		}
		if e.Video != nil {
			p.Video = *e.Video
		}

	case signaling.ServerError:
		c.fail(fmt.Errorf("relay: %s", e.Message))
	}
}

func (c *Call) applyUpdate(u negotiation.Update) {
	p, ok := c.roster[u.Peer]
	if !ok {
		return
	}
	prev := p.Status
	p.Status = u.Status
	p.State = u.State

	if u.Track != nil {
		c.notice = fmt.Sprintf("receiving %s from %s", u.Track.Kind, u.Peer)
	}
	if u.State == negotiation.StateFailed && prev != connstate.Failed {
		c.fail(fmt.Errorf("%w with %s", ErrNegotiationFailed, u.Peer))
	}
}

func (c *Call) toggle(cmd Command) {
	var payload signaling.MediaStatePayload
	switch cmd {
	case ToggleAudio:
		on := c.stream.ToggleAudio()
		payload.Audio = &on
	case ToggleVideo:
		on := c.stream.ToggleVideo()
		payload.Video = &on
	default:
		return
	}

	b, err := json.Marshal(payload)
	if err != nil {
		c.fail(err)
		return
	}
	msg := &signaling.Message{Type: signaling.MessageTypeMediaState, RoomID: c.roomID, Payload: b}
	if err := c.ch.SendMessage(msg); err != nil {
		c.fail(err)
	}
}

func (c *Call) leave() {
	if err := c.ch.SendMessage(&signaling.Message{Type: signaling.MessageTypeLeave}); err != nil {
		slog.Debug("send leave", "error", err)
	}
}

func (c *Call) fail(err error) {
	slog.Warn("call error", "error", err)
	c.lastErr = err
}

func (c *Call) add(id string) *Participant {
	if p, ok := c.roster[id]; ok {
		return p
	}
	p := &Participant{ID: id, Audio: true, Video: true, Status: connstate.Connecting}
	c.roster[id] = p
	c.order = append(c.order, id)
	return p
}

func (c *Call) remove(id string) {
	delete(c.roster, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
}

// Snapshot returns the current state of the call.
func (c *Call) Snapshot() Snapshot {
	s := Snapshot{
		RoomID: c.roomID,
		SelfID: c.selfID,
		Notice: c.notice,
		Err:    c.lastErr,
	}
	if c.stream != nil {
		s.Audio, s.Video = c.stream.AudioEnabled(), c.stream.VideoEnabled()
	}
	for _, id := range c.order {
		s.Participants = append(s.Participants, *c.roster[id])
	}
	return s
}

func (c *Call) publish() {
	s := c.Snapshot()
	select {
	case c.snapshots <- s:
	default:
		select {
		case <-c.snapshots:
		default:
		}
		c.snapshots <- s
	}
}

// Summary describes the call after Run returns.
func (c *Call) Summary() Summary {
	s := Summary{RoomID: c.roomID, SelfID: c.selfID}
	if !c.started.IsZero() {
		end := c.ended
		if end.IsZero() {
			end = time.Now()
		}
		s.Duration = end.Sub(c.started)
	}
	if c.manager != nil {
		s.Sessions = c.manager.Stats()
	}
	return s
}
