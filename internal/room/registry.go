package room

import (
	"slices"
	"sync"
	"time"
)

// MediaState is a participant's advertised audio/video flags.
type MediaState struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// MediaPatch carries a partial media-state update; nil fields are left unchanged.
type MediaPatch struct {
	Audio *bool `json:"audio,omitempty"`
	Video *bool `json:"video,omitempty"`
}

// Participant is the registry's view of one connected participant.
type Participant struct {
	ID       string
	RoomID   string
	Media    MediaState
	JoinedAt time.Time
}

// room holds the ordered member list of a single room. Its lock serializes
// membership changes for that room only.
type room struct {
	mu      sync.Mutex
	id      string
	members []string

	// closed is set when the last member leaves; a joiner that raced with
	// the removal must retry against a fresh room.
	closed bool
}

// Registry maps room ids to their members. The zero value is not usable;
// create one with NewRegistry.
type Registry struct {
	mu           sync.Mutex
	rooms        map[string]*room
	participants map[string]*Participant

	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:        make(map[string]*room),
		participants: make(map[string]*Participant),
		now:          time.Now,
	}
}

// Join moves participant into roomID, leaving any room it occupied before.
// It returns the members present before the participant was added, in join order.
func (r *Registry) Join(participant, roomID string) []string {
	r.Leave(participant)
	roomID = NormalizeID(roomID)

	for {
		rm := r.roomFor(roomID)

		rm.mu.Lock()
		if rm.closed {
			rm.mu.Unlock()
			continue
		}
		existing := slices.Clone(rm.members)
		rm.members = append(rm.members, participant)
		rm.mu.Unlock()

		r.mu.Lock()
		r.participants[participant] = &Participant{
			ID:       participant,
			RoomID:   roomID,
			Media:    MediaState{Audio: true, Video: true},
			JoinedAt: r.now(),
		}
		r.mu.Unlock()

		return existing
	}
}

// roomFor returns the live room for id, creating it if absent.
func (r *Registry) roomFor(id string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		rm = &room{id: id}
		r.rooms[id] = rm
	}
	return rm
}

// Leave removes participant from its room. It returns the room id and true
// when the participant was in a room, so callers can notify the remaining members.
func (r *Registry) Leave(participant string) (string, bool) {
	r.mu.Lock()
	p, ok := r.participants[participant]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	delete(r.participants, participant)
	rm := r.rooms[p.RoomID]
	r.mu.Unlock()

	if rm == nil {
		return p.RoomID, true
	}

	rm.mu.Lock()
	rm.members = slices.DeleteFunc(rm.members, func(id string) bool { return id == participant })
	empty := len(rm.members) == 0
	if empty {
		rm.closed = true
	}
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.rooms[rm.id] == rm {
			delete(r.rooms, rm.id)
		}
		r.mu.Unlock()
	}

	return p.RoomID, true
}

// MembersOf returns a snapshot of roomID's members in join order.
// An unknown room is empty.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.Lock()
	rm, ok := r.rooms[NormalizeID(roomID)]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return slices.Clone(rm.members)
}

// RoomOf returns the room participant currently occupies.
func (r *Registry) RoomOf(participant string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participant]
	if !ok {
		return "", false
	}
	return p.RoomID, true
}

// Participant returns a copy of the participant's record.
func (r *Registry) Participant(id string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// UpdateMedia merges patch into the participant's media state and returns the result.
func (r *Registry) UpdateMedia(id string, patch MediaPatch) (MediaState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return MediaState{}, false
	}
	if patch.Audio != nil {
		p.Media.Audio = *patch.Audio
	}
	if patch.Video != nil {
		p.Media.Video = *patch.Video
	}
	return p.Media, true
}

// Exists reports whether roomID currently has members.
func (r *Registry) Exists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.rooms[NormalizeID(roomID)]
	return ok
}

// Stats returns the number of live rooms and joined participants.
func (r *Registry) Stats() (rooms, participants int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms), len(r.participants)
}
