// Package signal serves the command channel: it hands every websocket
// connection a fresh identity and feeds its messages to the protocol engine.
package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/lobby/internal/adapters/ws"
	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/dkeye/lobby/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrUnknownIdentity = errors.New("unknown identity")

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

type Controller struct {
	handler core.CommandHandler
	limiter *RateLimiter
	metrics *metrics.Metrics
	opts    Options

	mu    sync.RWMutex
	conns map[domain.Identity]*ws.Conn
}

func NewController(opts Options, limiter *RateLimiter, m *metrics.Metrics) *Controller {
	return &Controller{
		limiter: limiter,
		metrics: m,
		opts:    opts,
		conns:   make(map[domain.Identity]*ws.Conn),
	}
}

// Bind sets the engine receiving inbound traffic. Must be called before serving.
func (ctl *Controller) Bind(h core.CommandHandler) {
	ctl.handler = h
}

func (ctl *Controller) HandleCommand(ctx context.Context, c *gin.Context) {
	wsConn, err := ws.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	id := domain.Identity(uuid.NewString())
	conn := ws.NewConn(wsConn, ctl.opts.SendBuffer)
	ctl.attach(id, conn)
	log.Info().Str("module", "signal").Str("identity", string(id)).Str("remote", c.ClientIP()).Msg("new command connection")

	go conn.WritePump(ctx, ctl.opts.PingPeriod)
	go ctl.readPump(ctx, id, conn)
}

// SendTo queues payload as a single-part message for the connection holding id.
func (ctl *Controller) SendTo(id domain.Identity, payload core.Frame) error {
	ctl.mu.RLock()
	conn, ok := ctl.conns[id]
	ctl.mu.RUnlock()
	if !ok {
		return ErrUnknownIdentity
	}
	return conn.SendEnvelope(core.Envelope{payload})
}

func (ctl *Controller) Connections() int {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return len(ctl.conns)
}

// Close tears down every command connection. In-flight replies may be lost.
func (ctl *Controller) Close() {
	ctl.mu.Lock()
	conns := make([]*ws.Conn, 0, len(ctl.conns))
	for _, c := range ctl.conns {
		conns = append(conns, c)
	}
	ctl.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	log.Info().Str("module", "signal").Int("closed", len(conns)).Msg("command connections closed")
}

func (ctl *Controller) attach(id domain.Identity, conn *ws.Conn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.conns[id] = conn
}

func (ctl *Controller) detach(id domain.Identity) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	delete(ctl.conns, id)
}
