package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/lobby/internal/core"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	in := core.Envelope{core.Frame("#general"), core.Frame(`{"message":"hi"}`), core.Frame{}}
	b, err := EncodeEnvelope(in)
	require.NoError(t, err)
	out, err := DecodeEnvelope(b)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "#general", string(out[0]))
	assert.Equal(t, `{"message":"hi"}`, string(out[1]))
	assert.Empty(t, out[2])
}

func TestEnvelopeRejectsEmptyAndGarbage(t *testing.T) {
	_, err := EncodeEnvelope(nil)
	assert.ErrorIs(t, err, ErrEmptyEnvelope)

	_, err = DecodeEnvelope([]byte{0xff, 0x00})
	assert.Error(t, err)

	b, err := EncodeEnvelope(core.Envelope{core.Frame("x")})
	require.NoError(t, err)
	_, err = DecodeEnvelope(b[:1])
	assert.Error(t, err)
}

func TestChannelURL(t *testing.T) {
	cases := []struct {
		endpoint, want string
	}{
		{"http://127.0.0.1:8888", "ws://127.0.0.1:4000/command"},
		{"tcp://127.0.0.1:8888", "ws://127.0.0.1:4000/command"},
		{"localhost:8888", "ws://localhost:4000/command"},
		{"https://lobby.example.com", "wss://lobby.example.com:4000/command"},
		{"http://[::1]:8888", "ws://[::1]:4000/command"},
	}
	for _, tc := range cases {
		got, err := ChannelURL(tc.endpoint, "4000", CommandPath)
		require.NoError(t, err, tc.endpoint)
		assert.Equal(t, tc.want, got)
	}

	_, err := ChannelURL("ftp://host:1", "4000", CommandPath)
	assert.Error(t, err)
	_, err = ChannelURL("http://host:1", "", CommandPath)
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DiscoveryPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"frontend":"1","backend":"2"}`))
	}))
	defer srv.Close()

	tr := NewClientTransport(8)
	body, err := tr.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frontend":"1","backend":"2"}`, string(body))

	srv404 := httptest.NewServer(http.NotFoundHandler())
	defer srv404.Close()
	_, err = tr.Discover(context.Background(), srv404.URL)
	assert.Error(t, err)
}

// echoServer upgrades and bounces every envelope back with an extra part.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewConn(wsConn, 8)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go c.WritePump(ctx, 0)
		c.ReadPump(ctx, 0, 0, func(env core.Envelope) {
			_ = c.SendEnvelope(append(core.Envelope{core.Frame(r.URL.Path)}, env...))
		})
	}))
}

func TestClientConnRoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	port := srv.Listener.Addr().String()[strings.LastIndex(srv.Listener.Addr().String(), ":")+1:]

	var mu sync.Mutex
	var got []core.Envelope
	onMessage := func(env core.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, env)
	}

	tr := NewClientTransport(8)
	sub, err := tr.DialBroadcast(context.Background(), srv.URL, port, onMessage)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, sub.Subscribe("#general"))
	require.NoError(t, sub.Unsubscribe("#general"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, BroadcastPath, string(got[0][0]))
	assert.Equal(t, []byte{SubscribeFlag}, []byte(got[0][1]))
	assert.Equal(t, "#general", string(got[0][2]))
	assert.Equal(t, []byte{UnsubscribeFlag}, []byte(got[1][1]))
}

func TestConnTrySendAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	wsConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	c := NewConn(wsConn, 1)
	require.NoError(t, c.TrySend([]byte("a")))
	assert.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)

	c.Close()
	c.Close()
	assert.True(t, c.Closed())
	assert.ErrorIs(t, c.TrySend([]byte("c")), ErrClosed)
}
