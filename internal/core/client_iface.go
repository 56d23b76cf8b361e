package core

import "context"

// CommandConn is the client end of the command channel.
type CommandConn interface {
	Send(env Envelope) error
	Close()
}

// SubscriptionConn is the client end of the broadcast channel. Filters are
// literal topic prefixes.
type SubscriptionConn interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Close()
}

// ClientTransport performs discovery and opens both channels. Endpoint is
// the discovery address; ports come from the discovery reply.
type ClientTransport interface {
	Discover(ctx context.Context, endpoint string) (Frame, error)
	DialCommand(ctx context.Context, endpoint, port string, onMessage func(Envelope)) (CommandConn, error)
	DialBroadcast(ctx context.Context, endpoint, port string, onMessage func(Envelope)) (SubscriptionConn, error)
}
