// Package pubsub serves the broadcast channel. Subscribers register literal
// topic prefixes; a publish reaches every subscriber holding a prefix of the topic.
package pubsub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/lobby/internal/adapters/ws"
	"github.com/dkeye/lobby/internal/app"
	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/dkeye/lobby/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

type subscriber struct {
	id   domain.Identity
	conn *ws.Conn

	mu       sync.RWMutex
	prefixes map[string]struct{}
}

func (s *subscriber) matches(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.prefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

type Hub struct {
	policy  app.Policy
	metrics *metrics.Metrics
	opts    Options

	mu   sync.RWMutex
	subs map[domain.Identity]*subscriber
}

func NewHub(opts Options, policy app.Policy, m *metrics.Metrics) *Hub {
	if policy == nil {
		policy = app.SimplePolicy{Action: app.DropFrame}
	}
	return &Hub{
		policy:  policy,
		metrics: m,
		opts:    opts,
		subs:    make(map[domain.Identity]*subscriber),
	}
}

func (h *Hub) HandleSubscribe(ctx context.Context, c *gin.Context) {
	wsConn, err := ws.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "pubsub").Msg("ws upgrade")
		return
	}
	sub := &subscriber{
		id:       domain.Identity(uuid.NewString()),
		conn:     ws.NewConn(wsConn, h.opts.SendBuffer),
		prefixes: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	log.Info().Str("module", "pubsub").Str("identity", string(sub.id)).Str("remote", c.ClientIP()).Msg("new broadcast subscriber")

	go sub.conn.WritePump(ctx, h.opts.PingPeriod)
	go h.readPump(ctx, sub)
}

func (h *Hub) readPump(ctx context.Context, sub *subscriber) {
	defer func() {
		h.mu.Lock()
		delete(h.subs, sub.id)
		h.mu.Unlock()
		log.Info().Str("module", "pubsub").Str("identity", string(sub.id)).Msg("subscriber gone")
	}()
	sub.conn.ReadPump(ctx, h.opts.ReadLimit, h.opts.PingPeriod, func(env core.Envelope) {
		h.handleControl(sub, env)
	})
}

// handleControl applies a [flag, topic] subscription message.
func (h *Hub) handleControl(sub *subscriber, env core.Envelope) {
	if len(env) != 2 || len(env[0]) != 1 {
		log.Warn().Str("module", "pubsub").Str("identity", string(sub.id)).Int("frames", len(env)).Msg("bad subscription message")
		return
	}
	topic := string(env[1])
	sub.mu.Lock()
	defer sub.mu.Unlock()
	switch env[0][0] {
	case ws.SubscribeFlag:
		sub.prefixes[topic] = struct{}{}
		log.Debug().Str("module", "pubsub").Str("identity", string(sub.id)).Str("topic", topic).Msg("subscribed")
	case ws.UnsubscribeFlag:
		delete(sub.prefixes, topic)
		log.Debug().Str("module", "pubsub").Str("identity", string(sub.id)).Str("topic", topic).Msg("unsubscribed")
	default:
		log.Warn().Str("module", "pubsub").Str("identity", string(sub.id)).Msg("unknown subscription flag")
	}
}

// Publish sends [topic, payload] to every matching subscriber. A full buffer
// is resolved by the policy; delivery is best effort.
func (h *Hub) Publish(topic string, payload core.Frame) error {
	data, err := ws.EncodeEnvelope(core.Envelope{core.Frame(topic), payload})
	if err != nil {
		return err
	}
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		if s.matches(topic) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, s := range targets {
		if err := s.conn.TrySend(data); err != nil {
			if !errors.Is(err, ws.ErrBackpressure) {
				// already closed, the read pump will drop it
				log.Debug().Err(err).Str("module", "pubsub").Str("identity", string(s.id)).Msg("skipping closed subscriber")
				continue
			}
			action := h.policy.OnBackPressure(topic, s.id)
			h.metrics.ObserveBackpressure(action.String())
			log.Warn().Err(err).Str("module", "pubsub").Str("identity", string(s.id)).Str("action", action.String()).Msg("subscriber not keeping up")
			if action == app.KickSubscriber {
				s.conn.Close()
			}
			continue
		}
		sent++
	}
	log.Debug().Str("module", "pubsub").Str("topic", topic).Int("sent_to", sent).Int("matched", len(targets)).Msg("publish result")
	return nil
}

// Subscribers counts connections whose filters match topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.subs {
		if s.matches(topic) {
			n++
		}
	}
	return n
}

func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.conn.Close()
	}
	log.Info().Str("module", "pubsub").Int("closed", len(subs)).Msg("broadcast subscribers closed")
}
