package orch

import (
	"errors"
	"strconv"
	"sync"

	"github.com/dkeye/lobby/internal/app"
	"github.com/dkeye/lobby/internal/codec"
	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/dkeye/lobby/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// inbound is the structural minimum of every command-channel message.
type inbound struct {
	Who     string `validate:"required"`
	Message string `validate:"required"`
}

// Orchestrator is the server protocol engine: it validates and authenticates
// command-channel traffic, drives the registry and routes broadcasts.
type Orchestrator struct {
	Registry   *app.Registry
	Replies    core.Replier
	Broadcasts core.Publisher
	Metrics    *metrics.Metrics

	validate *validator.Validate

	mu        sync.RWMutex
	endpoints codec.Fields
}

func New(reg *app.Registry, replies core.Replier, broadcasts core.Publisher, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		Registry:   reg,
		Replies:    replies,
		Broadcasts: broadcasts,
		Metrics:    m,
		validate:   validator.New(),
	}
}

// SetEndpoints records the bound command and broadcast ports announced by discovery.
func (o *Orchestrator) SetEndpoints(frontend, backend int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endpoints = codec.Fields{
		codec.FieldFrontend: strconv.Itoa(frontend),
		codec.FieldBackend:  strconv.Itoa(backend),
	}
}

// OnDiscoveryRequest answers every requester identically.
func (o *Orchestrator) OnDiscoveryRequest(id domain.Identity) codec.Fields {
	o.mu.RLock()
	defer o.mu.RUnlock()
	log.Debug().Str("module", "app.orch").Str("identity", string(id)).Msg("discovery request")
	return o.endpoints.Clone()
}

func (o *Orchestrator) OnCommandMessage(id domain.Identity, env core.Envelope) {
	if len(env) != 1 {
		log.Warn().Str("module", "app.orch").Int("frames", len(env)).Msg("unexpected frame count, dropping")
		o.Metrics.ObserveDrop(metrics.DropValidation)
		return
	}
	fields, err := codec.Decode(env[0])
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("cannot decode message, dropping")
		o.Metrics.ObserveDrop(metrics.DropDecode)
		return
	}
	in := inbound{Who: fields[codec.FieldWho], Message: fields[codec.FieldMessage]}
	if err := o.validate.Struct(in); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("message validation failed, dropping")
		o.Metrics.ObserveDrop(metrics.DropValidation)
		return
	}
	who := domain.MemberName(in.Who)

	var cmd core.Command
	var cmdErr error
	isCommand := core.IsCommand(in.Message)
	if isCommand {
		cmd, cmdErr = core.ParseCommand(in.Message)
	}

	// Everything except /CONNECT must come from the identity that registered who.
	if !isCommand || cmdErr != nil || cmd.Kind != core.CmdConnect {
		if err := o.Registry.Authenticate(who, id); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Msg("invalid identity, ignoring message")
			o.Metrics.ObserveDrop(metrics.DropAuth)
			return
		}
		o.Registry.Touch(who)
	}

	if isCommand {
		o.dispatch(id, who, cmd, cmdErr)
		return
	}

	room := domain.CanonicalRoomName(fields[codec.FieldRoom])
	if room == "" {
		log.Warn().Str("module", "app.orch").Str("who", in.Who).Msg("no room name provided, ignoring message")
		o.Metrics.ObserveDrop(metrics.DropNoRoom)
		return
	}
	out := fields.Clone()
	out[codec.FieldRoom] = string(room)
	o.Broadcast(room, out)
}

// OnDisconnect unregisters whoever was bound to id, as if it had sent /QUIT.
func (o *Orchestrator) OnDisconnect(id domain.Identity) {
	m, events, err := o.Registry.UnregisterIdentity(id)
	if errors.Is(err, domain.ErrUnknownMember) {
		return
	}
	log.Info().Str("module", "app.orch").Str("who", string(m.Name)).Msg("connection closed, member removed")
	o.announce(events)
	o.syncSize()
}

// Broadcast publishes fields on the room's topic, independent of the
// registry's view of who is in the room.
func (o *Orchestrator) Broadcast(room domain.RoomName, fields codec.Fields) {
	payload, err := codec.Encode(fields)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(room)).Msg("encode broadcast")
		return
	}
	log.Debug().Str("module", "app.orch").Str("room", string(room)).Interface("fields", fields).Msg("broadcasting")
	if err := o.Broadcasts.Publish(string(room), payload); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(room)).Msg("publish broadcast")
		return
	}
	o.Metrics.ObserveBroadcast()
}

func (o *Orchestrator) reply(id domain.Identity, text string) {
	payload, err := codec.Encode(codec.Fields{codec.FieldMessage: text})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode reply")
		return
	}
	log.Debug().Str("module", "app.orch").Str("identity", string(id)).Str("message", text).Msg("sending reply")
	if err := o.Replies.SendTo(id, payload); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("identity", string(id)).Msg("reply not delivered")
	}
}

func (o *Orchestrator) syncSize() {
	o.Metrics.SetRegistrySize(o.Registry.Size())
}
