package ws

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/dkeye/lobby/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DiscoveryPath = "/discovery"
	CommandPath   = "/command"
	BroadcastPath = "/broadcast"

	maxDiscoveryReply = 4096
)

// ClientTransport implements core.ClientTransport over HTTP discovery and
// two websocket channels.
type ClientTransport struct {
	HTTP       *http.Client
	Dialer     *websocket.Dialer
	SendBuffer int
}

func NewClientTransport(sendBuffer int) *ClientTransport {
	return &ClientTransport{
		HTTP:       &http.Client{},
		Dialer:     websocket.DefaultDialer,
		SendBuffer: sendBuffer,
	}
}

func (t *ClientTransport) Discover(ctx context.Context, endpoint string) (core.Frame, error) {
	base, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	base.Path = DiscoveryPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery request: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryReply))
	if err != nil {
		return nil, fmt.Errorf("discovery reply: %w", err)
	}
	return body, nil
}

func (t *ClientTransport) DialCommand(ctx context.Context, endpoint, port string, onMessage func(core.Envelope)) (core.CommandConn, error) {
	return t.dial(ctx, endpoint, port, CommandPath, onMessage)
}

func (t *ClientTransport) DialBroadcast(ctx context.Context, endpoint, port string, onMessage func(core.Envelope)) (core.SubscriptionConn, error) {
	return t.dial(ctx, endpoint, port, BroadcastPath, onMessage)
}

func (t *ClientTransport) dial(ctx context.Context, endpoint, port, path string, onMessage func(core.Envelope)) (*ClientConn, error) {
	target, err := ChannelURL(endpoint, port, path)
	if err != nil {
		return nil, err
	}
	ws, _, err := t.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	log.Info().Str("module", "adapters.ws").Str("url", target).Msg("connected")

	// The pumps outlive the dial context.
	pumpCtx, cancel := context.WithCancel(context.Background())
	c := &ClientConn{conn: NewConn(ws, t.SendBuffer), cancel: cancel}
	go c.conn.WritePump(pumpCtx, 0)
	go c.conn.ReadPump(pumpCtx, 0, 0, onMessage)
	return c, nil
}

// ClientConn is one dialed channel. It satisfies both core.CommandConn and
// core.SubscriptionConn.
type ClientConn struct {
	conn   *Conn
	cancel context.CancelFunc
}

func (c *ClientConn) Send(env core.Envelope) error {
	return c.conn.SendEnvelope(env)
}

func (c *ClientConn) Subscribe(topic string) error {
	return c.conn.SendEnvelope(core.Envelope{{SubscribeFlag}, core.Frame(topic)})
}

func (c *ClientConn) Unsubscribe(topic string) error {
	return c.conn.SendEnvelope(core.Envelope{{UnsubscribeFlag}, core.Frame(topic)})
}

func (c *ClientConn) Close() {
	c.cancel()
	c.conn.Close()
}

// ChannelURL builds the websocket URL for a channel on the discovery host.
func ChannelURL(endpoint, port, path string) (string, error) {
	base, err := parseEndpoint(endpoint)
	if err != nil {
		return "", err
	}
	if port == "" {
		return "", fmt.Errorf("no port for %s", path)
	}
	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(base.Hostname(), port), Path: path}
	return u.String(), nil
}

// parseEndpoint accepts "host:port", "tcp://host:port" and http(s) URLs.
func parseEndpoint(endpoint string) (*url.URL, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse endpoint %q: missing host", endpoint)
	}
	switch u.Scheme {
	case "http", "https":
	case "tcp", "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("parse endpoint %q: unsupported scheme %s", endpoint, u.Scheme)
	}
	return u, nil
}
