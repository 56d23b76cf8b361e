package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/lobby/internal/app"
	"github.com/dkeye/lobby/internal/codec"
	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleJoin(id domain.Identity, who domain.MemberName, cmd core.Command) {
	room, err := cmd.RoomArg()
	if err != nil {
		log.Warn().Str("module", "app.orch").Str("who", string(who)).Msg("no room provided for /JOIN")
		o.reply(id, "No room provided for /JOIN command")
		return
	}
	ev, err := o.Registry.Join(who, room)
	if err != nil {
		o.roomError(id, who, room, err)
		return
	}
	if ev.Created {
		o.syncSize()
	}
	o.announce([]app.RoomEvent{ev})
}

func (o *Orchestrator) handlePart(id domain.Identity, who domain.MemberName, cmd core.Command) {
	room, err := cmd.RoomArg()
	if err != nil {
		log.Warn().Str("module", "app.orch").Str("who", string(who)).Msg("no room provided for /PART")
		o.reply(id, "No room provided for /PART command")
		return
	}
	ev, err := o.Registry.Part(who, room)
	if err != nil {
		o.roomError(id, who, room, err)
		return
	}
	o.announce([]app.RoomEvent{ev})
}

func (o *Orchestrator) handleQuit(who domain.MemberName) {
	_, events, err := o.Registry.Unregister(who)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.orch").Str("who", string(who)).Msg("quit from unknown member")
		return
	}
	log.Info().Str("module", "app.orch").Str("who", string(who)).Msg("member has quit")
	o.announce(events)
	o.syncSize()
}

func (o *Orchestrator) roomError(id domain.Identity, who domain.MemberName, room domain.RoomName, err error) {
	log.Warn().Err(err).Str("module", "app.orch").Str("who", string(who)).Str("room", string(room)).Msg("room command rejected")
	var text string
	switch {
	case errors.Is(err, domain.ErrAlreadyMember):
		text = fmt.Sprintf("You are already a member of %s", room)
	case errors.Is(err, domain.ErrNotMember):
		text = fmt.Sprintf("You are not a member of %s", room)
	case errors.Is(err, domain.ErrUnknownRoom):
		text = fmt.Sprintf("Unknown room %s", room)
	default:
		text = fmt.Sprintf("Cannot process %s: %v", room, err)
	}
	o.reply(id, text)
}

func (o *Orchestrator) announce(events []app.RoomEvent) {
	for _, ev := range events {
		o.Broadcast(ev.Room, codec.Fields{
			codec.FieldRoom:    string(ev.Room),
			codec.FieldMessage: ev.Notice(),
		})
	}
}
