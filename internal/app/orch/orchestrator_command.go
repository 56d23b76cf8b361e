package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) dispatch(id domain.Identity, who domain.MemberName, cmd core.Command, parseErr error) {
	if errors.Is(parseErr, core.ErrEmptyCommand) {
		log.Warn().Str("module", "app.orch").Str("who", string(who)).Msg("empty command received")
		o.reply(id, "Empty command")
		return
	}
	o.Metrics.ObserveCommand(cmd.Kind.String())

	switch cmd.Kind {
	case core.CmdConnect:
		o.handleConnect(id, who)
	case core.CmdJoin:
		o.handleJoin(id, who, cmd)
	case core.CmdPart:
		o.handlePart(id, who, cmd)
	case core.CmdQuit:
		o.handleQuit(who)
	case core.CmdUnknown:
		o.reply(id, fmt.Sprintf("Unknown command: %s", cmd.Token))
	}
}

func (o *Orchestrator) handleConnect(id domain.Identity, who domain.MemberName) {
	log.Info().Str("module", "app.orch").Str("who", string(who)).Msg("member registration request")
	_, err := o.Registry.Register(who, id)
	switch {
	case err == nil:
		o.syncSize()
	case errors.Is(err, domain.ErrDuplicateName):
		log.Warn().Str("module", "app.orch").Str("who", string(who)).Msg("member already registered")
		o.reply(id, fmt.Sprintf("Member %s is already registered", who))
	case errors.Is(err, domain.ErrIdentityBound):
		log.Warn().Err(err).Str("module", "app.orch").Str("who", string(who)).Msg("connection already registered")
		o.reply(id, "Connection is already registered under another name")
	default:
		log.Warn().Err(err).Str("module", "app.orch").Str("who", string(who)).Msg("registration rejected")
		o.reply(id, fmt.Sprintf("Cannot register %s: %v", who, err))
	}
}
