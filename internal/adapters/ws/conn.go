// Package ws carries lobby multipart messages over gorilla websockets.
// Each connection has exactly one writer goroutine so per-connection order holds.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/lobby/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn owns a websocket and its outbound queue. Owned by the adapter;
// the adapter must Close() it.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func NewConn(ws *websocket.Conn, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 256
	}
	return &Conn{ws: ws, send: make(chan []byte, buffer)}
}

// TrySend queues data without blocking.
func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// SendEnvelope is TrySend for an encoded multipart message.
func (c *Conn) SendEnvelope(env core.Envelope) error {
	b, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
}

func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// WritePump drains the send queue to the socket. With pingPeriod > 0 it also
// emits websocket pings.
func (c *Conn) WritePump(ctx context.Context, pingPeriod time.Duration) {
	var tick <-chan time.Time
	if pingPeriod > 0 {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "adapters.ws").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "adapters.ws").Msg("writePump channel closed")
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		case <-tick:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Msg("writePump ping failed")
				return
			}
		}
	}
}

// ReadPump decodes inbound envelopes and hands them to onMessage until the
// socket fails or ctx ends. Undecodable payloads are logged and skipped.
func (c *Conn) ReadPump(ctx context.Context, readLimit int64, pingPeriod time.Duration, onMessage func(core.Envelope)) {
	defer c.Close()
	if readLimit > 0 {
		c.ws.SetReadLimit(readLimit)
	}
	if pingPeriod > 0 {
		pongWait := pingPeriod * 10 / 9
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.Closed() {
				log.Warn().Err(err).Str("module", "adapters.ws").Msg("readPump read error")
			}
			return
		}
		env, err := DecodeEnvelope(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.ws").Msg("readPump bad envelope")
			continue
		}
		onMessage(env)
	}
}
