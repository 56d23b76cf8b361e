package server

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/lobby/internal/adapters/ws"
	"github.com/dkeye/lobby/internal/client"
	"github.com/dkeye/lobby/internal/codec"
	"github.com/dkeye/lobby/internal/config"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Mode:            "test",
		DiscoveryAddr:   "127.0.0.1:0",
		FrontendAddr:    "127.0.0.1:0",
		BackendAddr:     "127.0.0.1:0",
		ReadLimit:       32768,
		PingPeriod:      54 * time.Second,
		SendBuffer:      64,
		ShutdownTimeout: time.Second,
		Backpressure:    "drop",
	}
}

func startServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return srv
}

func startClient(t *testing.T, srv *Server, who string, join ...string) *client.Client {
	t.Helper()
	c := client.New(client.Config{
		Who:              domain.MemberName(who),
		Endpoint:         "http://" + srv.DiscoveryAddr(),
		Join:             join,
		DiscoveryTimeout: time.Second,
	}, ws.NewClientTransport(64))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)
	return c
}

// waitFor drains q until an entry with the given message arrives.
func waitFor(t *testing.T, q *client.Inbox, message string) client.Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		e, err := q.Get(ctx)
		require.NoError(t, err, "waiting for %q", message)
		if e.Fields[codec.FieldMessage] == message {
			return e
		}
	}
}

func waitMembers(t *testing.T, srv *Server, room domain.RoomName, members ...domain.MemberName) {
	t.Helper()
	require.Eventually(t, func() bool {
		r, ok := srv.Registry.Room(room)
		if !ok {
			return false
		}
		return assert.ObjectsAreEqual(members, r.MemberNames()) && srv.Broadcasts.Subscribers(string(room)) >= len(members)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestServeRequiresListen(t *testing.T) {
	srv, err := New(testConfig())
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(context.Background()), ErrNotListening)
	assert.Empty(t, srv.DiscoveryAddr())
}

func TestRejectsBadBackpressure(t *testing.T) {
	cfg := testConfig()
	cfg.Backpressure = "explode"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestChatRoundTrip(t *testing.T) {
	srv := startServer(t)
	alice := startClient(t, srv, "alice", "#general")
	bob := startClient(t, srv, "bob", "general")
	waitMembers(t, srv, "#general", "alice", "bob")

	require.NoError(t, alice.Say("#general", "hello"))
	e := waitFor(t, bob.Public, "hello")
	assert.Equal(t, "#general", e.Topic)
	assert.Equal(t, "alice", e.Fields[codec.FieldWho])

	// Sender is subscribed too.
	waitFor(t, alice.Public, "hello")

	// Bare room names are canonicalised before broadcast.
	require.NoError(t, bob.Say("general", "hi back"))
	e = waitFor(t, alice.Public, "hi back")
	assert.Equal(t, "#general", e.Fields[codec.FieldRoom])
}

func TestDuplicateNameRejected(t *testing.T) {
	srv := startServer(t)
	first := startClient(t, srv, "alice")
	require.Eventually(t, func() bool {
		_, ok := srv.Registry.Member("alice")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	impostor := startClient(t, srv, "alice")
	waitFor(t, impostor.Private, "Member alice is already registered")

	// The impostor is not authenticated, so its chat goes nowhere, while the
	// first member is untouched.
	m, ok := srv.Registry.Member("alice")
	require.True(t, ok)
	assert.Empty(t, m.Rooms)
	assert.True(t, first.Connected())
}

func TestUnknownCommandReply(t *testing.T) {
	srv := startServer(t)
	alice := startClient(t, srv, "alice")
	require.NoError(t, alice.Say("", "/whois bob"))
	waitFor(t, alice.Private, "Unknown command: /WHOIS")
}

func TestQuitCascadesPart(t *testing.T) {
	srv := startServer(t)
	alice := startClient(t, srv, "alice", "#general")
	bob := startClient(t, srv, "bob", "#general")
	waitMembers(t, srv, "#general", "alice", "bob")

	require.NoError(t, bob.Say("", "/QUIT"))
	waitFor(t, alice.Public, "bob has left #general")

	_, ok := srv.Registry.Member("bob")
	assert.False(t, ok)
	room, ok := srv.Registry.Room("#general")
	require.True(t, ok)
	assert.Equal(t, []domain.MemberName{"alice"}, room.MemberNames())
	assert.Empty(t, bob.Rooms())
}

func TestDisconnectUnregisters(t *testing.T) {
	srv := startServer(t)
	alice := startClient(t, srv, "alice", "#general")
	bob := startClient(t, srv, "bob", "#general")
	waitMembers(t, srv, "#general", "alice", "bob")

	bob.Stop()
	waitFor(t, alice.Public, "bob has left #general")
	require.Eventually(t, func() bool {
		members, _ := srv.Registry.Size()
		return members == 1
	}, 3*time.Second, 10*time.Millisecond)
}
