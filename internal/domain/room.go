package domain

import (
	"sort"
	"strings"
)

const RoomPrefix = "#"

type RoomName string

// Room is a named channel. Its name doubles as the broadcast topic.
type Room struct {
	Name    RoomName
	Topic   string
	Members map[MemberName]struct{}
}

func NewRoom(name RoomName) *Room {
	return &Room{Name: name, Members: make(map[MemberName]struct{})}
}

// CanonicalRoomName prefixes raw with '#' unless it already carries it.
// An empty input stays empty so callers can report the missing argument.
func CanonicalRoomName(raw string) RoomName {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, RoomPrefix) {
		raw = RoomPrefix + raw
	}
	return RoomName(raw)
}

func (r *Room) Has(name MemberName) bool {
	_, ok := r.Members[name]
	return ok
}

// MemberNames returns the roster in lexical order.
func (r *Room) MemberNames() []MemberName {
	out := make([]MemberName, 0, len(r.Members))
	for m := range r.Members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Room) Clone() Room {
	members := make(map[MemberName]struct{}, len(r.Members))
	for m := range r.Members {
		members[m] = struct{}{}
	}
	return Room{Name: r.Name, Topic: r.Topic, Members: members}
}
