package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomEventKind int

const (
	MemberJoined RoomEventKind = iota
	MemberLeft
)

// RoomEvent describes a membership change that must be announced on the
// room's broadcast topic.
type RoomEvent struct {
	Kind    RoomEventKind
	Member  domain.MemberName
	Room    domain.RoomName
	Created bool
}

func (e RoomEvent) Notice() string {
	if e.Kind == MemberJoined {
		return fmt.Sprintf("%s has joined %s", e.Member, e.Room)
	}
	return fmt.Sprintf("%s has left %s", e.Member, e.Room)
}

// Registry owns the member and room tables. A single mutex guards both so the
// member<->room cross references never diverge.
type Registry struct {
	mu         sync.RWMutex
	members    map[domain.MemberName]*domain.Member
	byIdentity map[domain.Identity]domain.MemberName
	rooms      map[domain.RoomName]*domain.Room
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		members:    make(map[domain.MemberName]*domain.Member),
		byIdentity: make(map[domain.Identity]domain.MemberName),
		rooms:      make(map[domain.RoomName]*domain.Room),
		now:        time.Now,
	}
}

func (r *Registry) Register(name domain.MemberName, id domain.Identity) (domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[name]; ok {
		return domain.Member{}, domain.ErrDuplicateName
	}
	if owner, ok := r.byIdentity[id]; ok {
		return domain.Member{}, fmt.Errorf("%w: %s", domain.ErrIdentityBound, owner)
	}
	m, err := domain.NewMember(name, id, r.now())
	if err != nil {
		return domain.Member{}, err
	}
	r.members[name] = m
	r.byIdentity[id] = name
	log.Info().Str("module", "app.registry").Str("who", string(name)).Msg("member registered")
	return m.Clone(), nil
}

// Authenticate succeeds only when name is registered by the same identity.
// Callers must not reveal which of the two checks failed.
func (r *Registry) Authenticate(name domain.MemberName, id domain.Identity) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[name]
	if !ok {
		return fmt.Errorf("%w: unknown member %s", domain.ErrAuthentication, name)
	}
	if m.Identity != id {
		return fmt.Errorf("%w: identity mismatch for %s", domain.ErrAuthentication, name)
	}
	return nil
}

func (r *Registry) Touch(name domain.MemberName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[name]; ok {
		m.LastActive = r.now()
	}
}

// Join adds name to room, creating the room on first use.
func (r *Registry) Join(name domain.MemberName, room domain.RoomName) (RoomEvent, error) {
	if room == "" {
		return RoomEvent{}, domain.ErrEmptyRoomArg
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[name]
	if !ok {
		return RoomEvent{}, domain.ErrUnknownMember
	}
	rm, ok := r.rooms[room]
	created := false
	if !ok {
		rm = domain.NewRoom(room)
		r.rooms[room] = rm
		created = true
		log.Debug().Str("module", "app.registry").Str("room", string(room)).Msg("room created")
	} else if rm.Has(name) {
		return RoomEvent{}, domain.ErrAlreadyMember
	}
	rm.Members[name] = struct{}{}
	m.Rooms[room] = struct{}{}
	log.Info().Str("module", "app.registry").Str("who", string(name)).Str("room", string(room)).Msg("member joined")
	return RoomEvent{Kind: MemberJoined, Member: name, Room: room, Created: created}, nil
}

func (r *Registry) Part(name domain.MemberName, room domain.RoomName) (RoomEvent, error) {
	if room == "" {
		return RoomEvent{}, domain.ErrEmptyRoomArg
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[room]
	if !ok {
		return RoomEvent{}, domain.ErrUnknownRoom
	}
	if !rm.Has(name) {
		return RoomEvent{}, domain.ErrNotMember
	}
	r.partLocked(name, rm)
	log.Info().Str("module", "app.registry").Str("who", string(name)).Str("room", string(room)).Msg("member left")
	return RoomEvent{Kind: MemberLeft, Member: name, Room: room}, nil
}

func (r *Registry) partLocked(name domain.MemberName, rm *domain.Room) {
	delete(rm.Members, name)
	if m, ok := r.members[name]; ok {
		delete(m.Rooms, rm.Name)
	}
}

// Unregister removes the member and parts it from every room it was in.
// Rooms themselves are kept even when emptied.
func (r *Registry) Unregister(name domain.MemberName) (domain.Member, []RoomEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(name)
}

// UnregisterIdentity is Unregister keyed by transport identity, used when a
// connection goes away without /QUIT.
func (r *Registry) UnregisterIdentity(id domain.Identity) (domain.Member, []RoomEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.byIdentity[id]
	if !ok {
		return domain.Member{}, nil, domain.ErrUnknownMember
	}
	return r.unregisterLocked(name)
}

func (r *Registry) unregisterLocked(name domain.MemberName) (domain.Member, []RoomEvent, error) {
	m, ok := r.members[name]
	if !ok {
		return domain.Member{}, nil, domain.ErrUnknownMember
	}
	snapshot := m.Clone()
	events := make([]RoomEvent, 0, len(m.Rooms))
	for _, roomName := range m.RoomNames() {
		if rm, ok := r.rooms[roomName]; ok {
			r.partLocked(name, rm)
			events = append(events, RoomEvent{Kind: MemberLeft, Member: name, Room: roomName})
		}
	}
	delete(r.members, name)
	delete(r.byIdentity, m.Identity)
	log.Info().Str("module", "app.registry").Str("who", string(name)).Int("parted", len(events)).Msg("member unregistered")
	return snapshot, events, nil
}

func (r *Registry) SetTopic(room domain.RoomName, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[room]
	if !ok {
		return domain.ErrUnknownRoom
	}
	rm.Topic = topic
	log.Info().Str("module", "app.registry").Str("room", string(room)).Str("topic", topic).Msg("topic updated")
	return nil
}

func (r *Registry) Member(name domain.MemberName) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[name]
	if !ok {
		return domain.Member{}, false
	}
	return m.Clone(), true
}

func (r *Registry) MemberByIdentity(id domain.Identity) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byIdentity[id]
	if !ok {
		return domain.Member{}, false
	}
	return r.members[name].Clone(), true
}

func (r *Registry) Room(name domain.RoomName) (domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[name]
	if !ok {
		return domain.Room{}, false
	}
	return rm.Clone(), true
}

func (r *Registry) Rooms() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for name, rm := range r.rooms {
		out = append(out, core.RoomInfo{Name: name, Topic: rm.Topic, MemberCount: len(rm.Members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Members() []core.MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberDTO, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, core.MemberDTO{
			Name:       m.Name,
			Rooms:      m.RoomNames(),
			LastActive: m.LastActive.Unix(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Size reports the number of registered members and known rooms.
func (r *Registry) Size() (members, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members), len(r.rooms)
}
