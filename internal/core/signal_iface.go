package core

import "github.com/dkeye/lobby/internal/domain"

// Frame is one part of a multipart transport message.
type Frame []byte

// Envelope is a multipart message as delivered by the transport.
// Part order is significant and preserved end to end.
type Envelope []Frame

// Replier delivers a single-part message to one command-channel connection.
// Owned by the adapter; the engine only addresses it by identity.
type Replier interface {
	SendTo(id domain.Identity, payload Frame) error
}

// Publisher fans a payload out on the broadcast channel to every subscriber
// whose filter is a prefix of topic.
type Publisher interface {
	Publish(topic string, payload Frame) error
}
