package core

import (
	"context"
	"encoding/json"
)

// Frame is a raw encoded signaling message.
type Frame []byte

// Message is one named event read from the signaling channel.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Emitter sends a named event with a JSON-encodable payload.
type Emitter interface {
	Emit(event string, payload any) error
}

// SignalConnection abstracts the persistent signaling transport.
// Owned by the coordinator; the coordinator must Close() it.
// Reconnects are never attempted by the connection itself.
type SignalConnection interface {
	Emitter
	// Incoming delivers messages in the order the backend sent them.
	// It is closed once the connection is gone.
	Incoming() <-chan Message
	Done() <-chan struct{}
	// Err reports why the connection ended, nil after a local Close.
	Err() error
	Close()
}

type SignalDialer interface {
	Dial(ctx context.Context) (SignalConnection, error)
}
