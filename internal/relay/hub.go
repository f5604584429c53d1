package relay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/BioHazard786/warpcall/internal/room"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

type inbound struct {
	conn *Conn
	msg  *signaling.Message
	err  error
}

// Hub is the relay dispatcher. A single goroutine (Run) owns the set of open
// connections and processes every inbound message in arrival order, so
// notifications for one event are queued before the next event is looked at.
// Room membership lives in the registry.
type Hub struct {
	rooms   *room.Registry
	metrics *Metrics

	conns map[string]*Conn

	registerCh   chan *Conn
	unregisterCh chan *Conn
	inboundCh    chan inbound
	done         chan struct{}
}

// NewHub creates a hub over rooms. metrics may be nil.
func NewHub(rooms *room.Registry, metrics *Metrics) *Hub {
	return &Hub{
		rooms:        rooms,
		metrics:      metrics,
		conns:        make(map[string]*Conn),
		registerCh:   make(chan *Conn),
		unregisterCh: make(chan *Conn),
		inboundCh:    make(chan inbound),
		done:         make(chan struct{}),
	}
}

// Rooms exposes the registry backing the hub.
func (h *Hub) Rooms() *room.Registry {
	return h.rooms
}

// Register hands a new connection to the hub. It returns false once the hub
// has stopped.
func (h *Hub) Register(c *Conn) bool {
	select {
	case h.registerCh <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Conn) {
	select {
	case h.unregisterCh <- c:
	case <-h.done:
	}
}

// dispatch queues a decoded frame (or its decode error) for the hub.
func (h *Hub) dispatch(c *Conn, msg *signaling.Message, err error) bool {
	select {
	case h.inboundCh <- inbound{conn: c, msg: msg, err: err}:
		return true
	case <-h.done:
		return false
	}
}

// Run processes hub events until ctx is cancelled. On return every open
// connection's send queue is closed, which makes its write pump hang up.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for id, c := range h.conns {
			delete(h.conns, id)
			h.metrics.connected(-1)
			close(c.Send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.registerCh:
			h.conns[c.ID] = c
			h.metrics.connected(1)
			slog.Debug("participant connected", "participant", c.ID)

			welcome, _ := signaling.NewMessage(signaling.MessageTypeWelcome, signaling.WelcomePayload{ID: c.ID})
			h.send(c, welcome)

		case c := <-h.unregisterCh:
			if h.conns[c.ID] != c {
				// Already dropped.
				continue
			}
			slog.Debug("participant disconnected", "participant", c.ID)
			h.drop(c)

		case in := <-h.inboundCh:
			if h.conns[in.conn.ID] != in.conn {
				continue
			}
			if in.err != nil {
				h.reject(in.conn, RejectBadFrame, "invalid message")
				continue
			}
			h.handle(in.conn, in.msg)
		}
	}
}

func (h *Hub) handle(c *Conn, msg *signaling.Message) {
	switch {
	case msg.Type == signaling.MessageTypeJoin:
		h.handleJoin(c, msg)
	case msg.Type == signaling.MessageTypeLeave:
		h.leave(c)
	case signaling.IsRelayed(msg.Type):
		h.handleRelay(c, msg)
	default:
		h.reject(c, RejectUnknownType, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// handleJoin registers the participant, sends it the snapshot of the members
// that were already present and then tells each of them about the newcomer.
func (h *Hub) handleJoin(c *Conn, msg *signaling.Message) {
	roomID := room.NormalizeID(msg.RoomID)
	if roomID == "" {
		h.reject(c, RejectMissingRoomID, "room_id is required")
		return
	}

	h.leave(c)
	existing := h.rooms.Join(c.ID, roomID)
	h.metrics.joined()
	h.syncRoomGauge()
	slog.Info("participant joined", "participant", c.ID, "room", roomID, "members", len(existing)+1)

	snapshot := signaling.MembersPayload{
		Members:      make([]string, 0, len(existing)),
		Participants: make([]signaling.MemberInfo, 0, len(existing)),
	}
	for _, id := range existing {
		snapshot.Members = append(snapshot.Members, id)
		info := signaling.MemberInfo{ID: id, Audio: true, Video: true}
		if p, ok := h.rooms.Participant(id); ok {
			info.Audio, info.Video = p.Media.Audio, p.Media.Video
		}
		snapshot.Participants = append(snapshot.Participants, info)
	}
	members, _ := signaling.NewMessage(signaling.MessageTypeMembers, snapshot)
	members.RoomID = roomID
	h.send(c, members)
	if h.conns[c.ID] != c {
		// Dropped while sending the snapshot; the room has already seen it leave.
		return
	}

	joined, _ := signaling.NewMessage(signaling.MessageTypeParticipantJoined, signaling.ParticipantPayload{ID: c.ID})
	joined.RoomID = roomID
	for _, id := range existing {
		h.sendTo(id, joined)
	}
}

// leave removes c from its room, if any, and notifies the remaining members.
func (h *Hub) leave(c *Conn) {
	roomID, ok := h.rooms.Leave(c.ID)
	if !ok {
		return
	}
	h.syncRoomGauge()
	slog.Info("participant left", "participant", c.ID, "room", roomID)

	left, _ := signaling.NewMessage(signaling.MessageTypeParticipantLeft, signaling.ParticipantPayload{ID: c.ID})
	left.RoomID = roomID
	for _, id := range h.rooms.MembersOf(roomID) {
		h.sendTo(id, left)
	}
}

// handleRelay forwards offer, answer, candidate and media_state messages to
// the other members of the sender's room, or to the single member named in To.
func (h *Hub) handleRelay(c *Conn, msg *signaling.Message) {
	roomID, ok := h.rooms.RoomOf(c.ID)
	if !ok {
		h.reject(c, RejectNotInRoom, "join a room first")
		return
	}
	if msg.RoomID != "" && room.NormalizeID(msg.RoomID) != roomID {
		h.reject(c, RejectRoomMismatch, fmt.Sprintf("not a member of room %s", room.NormalizeID(msg.RoomID)))
		return
	}

	if msg.Type == signaling.MessageTypeMediaState {
		var patch room.MediaPatch
		if err := msg.DecodePayload(&patch); err != nil {
			h.reject(c, RejectBadPayload, "invalid media_state payload")
			return
		}
		h.rooms.UpdateMedia(c.ID, patch)
	}

	members := h.rooms.MembersOf(roomID)
	out := msg.Forward(c.ID)
	out.RoomID = roomID

	if msg.To != "" {
		if msg.To == c.ID || !slices.Contains(members, msg.To) {
			h.reject(c, RejectNoRecipient, fmt.Sprintf("participant %s is not in room %s", msg.To, roomID))
			return
		}
		h.sendTo(msg.To, out)
		h.metrics.relayedMessage(msg.Type)
		return
	}

	delivered := false
	for _, id := range members {
		if id == c.ID {
			continue
		}
		h.sendTo(id, out)
		delivered = true
	}
	if delivered {
		h.metrics.relayedMessage(msg.Type)
	}
	slog.Debug("relayed", "type", msg.Type, "from", c.ID, "room", roomID, "delivered", delivered)
}

func (h *Hub) reject(c *Conn, reason, text string) {
	h.metrics.rejectedMessage(reason)
	slog.Debug("message rejected", "participant", c.ID, "reason", reason)
	h.send(c, signaling.ErrorMessage(text))
}

func (h *Hub) sendTo(id string, msg *signaling.Message) {
	if c, ok := h.conns[id]; ok {
		h.send(c, msg)
	}
}

// send queues msg for c without blocking the hub. A connection that cannot
// keep up is dropped.
func (h *Hub) send(c *Conn, msg *signaling.Message) {
	if h.conns[c.ID] != c {
		return
	}
	select {
	case c.Send <- msg:
	default:
		slog.Warn("send queue full, dropping participant", "participant", c.ID)
		h.metrics.rejectedMessage(RejectSlowConsumer)
		h.drop(c)
	}
}

// drop forgets c, treats it as having left its room and closes its queue.
func (h *Hub) drop(c *Conn) {
	delete(h.conns, c.ID)
	h.metrics.connected(-1)
	h.leave(c)
	close(c.Send)
}

func (h *Hub) syncRoomGauge() {
	rooms, _ := h.rooms.Stats()
	h.metrics.setRooms(rooms)
}
