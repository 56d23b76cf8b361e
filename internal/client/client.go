// Package client is the lobby client engine. It discovers the server,
// opens the command and broadcast channels, mirrors JOIN/PART/QUIT onto its
// broadcast subscriptions and queues everything it receives in two inboxes.
package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/lobby/internal/codec"
	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrDiscovery      = errors.New("discovery failed")
	ErrNotConnected   = errors.New("not connected")
	ErrEmptyMessage   = errors.New("empty message")
	ErrAlreadyStarted = errors.New("client already started")
)

type Config struct {
	Who               domain.MemberName
	Endpoint          string
	Join              []string
	DiscoveryTimeout  time.Duration
	DiscoveryAttempts int
	RetryDelay        time.Duration
}

type Client struct {
	cfg       Config
	transport core.ClientTransport

	// Public receives broadcast-channel messages, Private command-channel replies.
	Public  *Inbox
	Private *Inbox

	mu        sync.Mutex
	started   bool
	connected bool
	rooms     []domain.RoomName
	cmd       core.CommandConn
	sub       core.SubscriptionConn
}

func New(cfg Config, transport core.ClientTransport) *Client {
	if cfg.DiscoveryAttempts <= 0 {
		cfg.DiscoveryAttempts = 1
	}
	return &Client{
		cfg:       cfg,
		transport: transport,
		Public:    NewInbox(),
		Private:   NewInbox(),
	}
}

// Start discovers the channel ports, dials both channels, registers with
// /CONNECT and joins the configured rooms. A discovery failure is fatal.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	log.Info().Str("module", "client").Str("who", string(c.cfg.Who)).Msg("starting lobby client")

	endpoints, err := c.discover(ctx)
	if err != nil {
		return err
	}
	frontend := endpoints[codec.FieldFrontend]
	backend := endpoints[codec.FieldBackend]

	cmd, err := c.transport.DialCommand(ctx, c.cfg.Endpoint, frontend, c.onPrivate)
	if err != nil {
		return fmt.Errorf("connect command channel: %w", err)
	}
	sub, err := c.transport.DialBroadcast(ctx, c.cfg.Endpoint, backend, c.onPublic)
	if err != nil {
		cmd.Close()
		return fmt.Errorf("connect broadcast channel: %w", err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.sub = sub
	c.connected = true
	c.mu.Unlock()

	if err := c.Say("", "/CONNECT"); err != nil {
		c.Stop()
		return fmt.Errorf("register: %w", err)
	}
	for _, room := range c.cfg.Join {
		if err := c.Say("", "/JOIN "+room); err != nil {
			c.Stop()
			return fmt.Errorf("join %s: %w", room, err)
		}
	}
	return nil
}

func (c *Client) discover(ctx context.Context) (codec.Fields, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.DiscoveryAttempts; attempt++ {
		log.Info().Str("module", "client").Str("endpoint", c.cfg.Endpoint).Int("attempt", attempt).Msg("discovering server endpoints")
		fields, err := c.discoverOnce(ctx)
		if err == nil {
			log.Info().Str("module", "client").Interface("endpoints", fields).Msg("discovered server endpoints")
			return fields, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("module", "client").Int("attempt", attempt).Msg("discovery attempt failed")

		if attempt == c.cfg.DiscoveryAttempts {
			break
		}
		select {
		case <-time.After(c.cfg.RetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrDiscovery, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrDiscovery, lastErr)
}

func (c *Client) discoverOnce(ctx context.Context) (codec.Fields, error) {
	if c.cfg.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DiscoveryTimeout)
		defer cancel()
	}
	raw, err := c.transport.Discover(ctx, c.cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	fields, err := codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := fields.Get(codec.FieldFrontend); !ok {
		return nil, errors.New("reply has no frontend port")
	}
	if _, ok := fields.Get(codec.FieldBackend); !ok {
		return nil, errors.New("reply has no backend port")
	}
	return fields, nil
}

// Say sends message to the server, tagged with room when non-empty. Commands
// are applied to the local subscriptions first and then forwarded anyway:
// the server stays authoritative.
func (c *Client) Say(room domain.RoomName, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		log.Warn().Str("module", "client").Msg("not connected yet, cannot send a message")
		return ErrNotConnected
	}
	if message == "" {
		log.Warn().Str("module", "client").Msg("need to provide a message to be sent")
		return ErrEmptyMessage
	}

	fields := codec.Fields{
		codec.FieldWho:     string(c.cfg.Who),
		codec.FieldMessage: message,
	}
	if room != "" {
		fields[codec.FieldRoom] = string(room)
	}
	payload, err := codec.Encode(fields)
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("cannot encode message, not sent")
		return err
	}
	if core.IsCommand(message) {
		c.processCommand(message)
	}
	log.Debug().Str("module", "client").Interface("fields", fields).Msg("sending message")
	return c.cmd.Send(core.Envelope{payload})
}

// processCommand mirrors a command locally. Unknown commands may be
// server-only and are ignored. Caller holds c.mu.
func (c *Client) processCommand(message string) {
	cmd, err := core.ParseCommand(message)
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("empty command provided, ignoring it")
		return
	}
	switch cmd.Kind {
	case core.CmdJoin:
		room, err := cmd.RoomArg()
		if err != nil {
			log.Warn().Str("module", "client").Msg("no room provided for /JOIN command")
			return
		}
		if slices.Contains(c.rooms, room) {
			log.Warn().Str("module", "client").Str("room", string(room)).Msg("already subscribed")
			return
		}
		if err := c.sub.Subscribe(string(room)); err != nil {
			log.Error().Err(err).Str("module", "client").Str("room", string(room)).Msg("subscribe")
			return
		}
		c.rooms = append(c.rooms, room)
		log.Info().Str("module", "client").Str("room", string(room)).Msg("subscribed")
	case core.CmdPart:
		room, err := cmd.RoomArg()
		if err != nil {
			log.Warn().Str("module", "client").Msg("no room provided for /PART command")
			return
		}
		i := slices.Index(c.rooms, room)
		if i < 0 {
			log.Warn().Str("module", "client").Str("room", string(room)).Msg("not subscribed")
			return
		}
		if err := c.sub.Unsubscribe(string(room)); err != nil {
			log.Error().Err(err).Str("module", "client").Str("room", string(room)).Msg("unsubscribe")
		}
		c.rooms = slices.Delete(c.rooms, i, i+1)
		log.Info().Str("module", "client").Str("room", string(room)).Msg("unsubscribed")
	case core.CmdQuit:
		for _, room := range c.rooms {
			if err := c.sub.Unsubscribe(string(room)); err != nil {
				log.Error().Err(err).Str("module", "client").Str("room", string(room)).Msg("unsubscribe")
			}
		}
		log.Info().Str("module", "client").Int("rooms", len(c.rooms)).Msg("dropped all subscriptions")
		c.rooms = nil
	}
}

func (c *Client) onPublic(env core.Envelope) {
	if len(env) != 2 {
		log.Warn().Str("module", "client").Int("frames", len(env)).Msg("invalid public message received")
		return
	}
	fields, err := codec.Decode(env[1])
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("invalid public message received")
		return
	}
	log.Debug().Str("module", "client").Str("topic", string(env[0])).Msg("new public message received")
	c.Public.Put(Entry{Received: time.Now(), Topic: string(env[0]), Fields: fields})
}

func (c *Client) onPrivate(env core.Envelope) {
	if len(env) != 1 {
		log.Warn().Str("module", "client").Int("frames", len(env)).Msg("invalid private message received")
		return
	}
	fields, err := codec.Decode(env[0])
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("invalid private message received")
		return
	}
	log.Debug().Str("module", "client").Msg("new private message received")
	c.Private.Put(Entry{Received: time.Now(), Fields: fields})
}

// Rooms lists the locally joined rooms in join order.
func (c *Client) Rooms() []domain.RoomName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.rooms)
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Stop closes both channels. It does not send /QUIT.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Info().Str("module", "client").Msg("stopping lobby client")
	c.connected = false
	if c.cmd != nil {
		c.cmd.Close()
	}
	if c.sub != nil {
		c.sub.Close()
	}
}
