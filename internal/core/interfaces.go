package core

import "github.com/dkeye/lobby/internal/domain"

// CommandHandler consumes inbound command-channel traffic.
// The command adapter calls it from the connection's read loop.
type CommandHandler interface {
	OnCommandMessage(id domain.Identity, env Envelope)
	OnDisconnect(id domain.Identity)
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	Name       domain.MemberName `json:"name"`
	Rooms      []domain.RoomName `json:"rooms"`
	LastActive int64             `json:"last_active"`
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	Topic       string          `json:"topic,omitempty"`
	MemberCount int             `json:"member_count"`
}

type RoomDetail struct {
	RoomInfo
	Members []domain.MemberName `json:"members"`
}
