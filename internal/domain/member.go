// Package domain contains lobby entities without transport logic, just meta-data
package domain

import (
	"sort"
	"time"
)

const MaxMemberNameLen = 64

type (
	MemberName string
	// Identity is the opaque per-connection token handed out by the transport.
	// It authorizes a member and is never shown to other members.
	Identity string
)

// Member is a registered chat participant bound to one transport identity.
type Member struct {
	Name       MemberName
	Identity   Identity
	LastActive time.Time
	Rooms      map[RoomName]struct{}
}

// NewMember validates the name and returns a member with an empty room set.
func NewMember(name MemberName, id Identity, now time.Time) (*Member, error) {
	if err := ValidateMemberName(name); err != nil {
		return nil, err
	}
	return &Member{
		Name:       name,
		Identity:   id,
		LastActive: now,
		Rooms:      make(map[RoomName]struct{}),
	}, nil
}

func ValidateMemberName(name MemberName) error {
	if len(name) == 0 {
		return ErrMemberNameEmpty
	}
	if len(name) > MaxMemberNameLen {
		return ErrMemberNameTooLong
	}
	return nil
}

func (m *Member) InRoom(room RoomName) bool {
	_, ok := m.Rooms[room]
	return ok
}

// RoomNames returns the joined rooms in lexical order.
func (m *Member) RoomNames() []RoomName {
	out := make([]RoomName, 0, len(m.Rooms))
	for r := range m.Rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy safe to hand out of the registry lock.
func (m *Member) Clone() Member {
	rooms := make(map[RoomName]struct{}, len(m.Rooms))
	for r := range m.Rooms {
		rooms[r] = struct{}{}
	}
	return Member{
		Name:       m.Name,
		Identity:   m.Identity,
		LastActive: m.LastActive,
		Rooms:      rooms,
	}
}
