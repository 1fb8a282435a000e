package core

import (
	"context"
	"encoding/json"

	"github.com/dkeye/meetclient/internal/domain"
)

// LocalTrack is a captured device track. Stop releases the device.
type LocalTrack interface {
	ID() string
	Kind() domain.MediaKind
	Stop()
}

type RemoteTrack interface {
	ID() string
	Kind() domain.MediaKind
}

type Producer interface {
	ID() domain.ProducerID
	Track() LocalTrack
	Close() error
}

type Consumer interface {
	ID() domain.ConsumerID
	ProducerID() domain.ProducerID
	Kind() domain.MediaKind
	Track() RemoteTrack
	Resume() error
	Close() error
}

// TransportParams are the server-side parameters of a freshly created transport.
type TransportParams struct {
	ID             domain.TransportID `json:"id"`
	ICEParameters  json.RawMessage    `json:"iceParameters"`
	ICECandidates  json.RawMessage    `json:"iceCandidates"`
	DTLSParameters json.RawMessage    `json:"dtlsParameters"`
}

type ProduceOptions struct {
	Discriminator domain.Discriminator
	MaxBitrate    int
	MaxFramerate  int
	Encodings     []domain.SimulcastLayer
}

// PendingProduce holds a track attached to the send transport whose producer
// id has not been acknowledged yet. Exactly one of Commit or Abort must be called.
type PendingProduce interface {
	RTPParameters() json.RawMessage
	Commit(id domain.ProducerID) (Producer, error)
	Abort()
}

type ConsumeParams struct {
	ConsumerID    domain.ConsumerID `json:"id"`
	ProducerID    domain.ProducerID `json:"producerId"`
	Kind          domain.MediaKind  `json:"kind"`
	RTPParameters json.RawMessage   `json:"rtpParameters"`
}

// Transport is one duplex-negotiated tunnel, either send or recv.
type Transport interface {
	ID() domain.TransportID
	Direction() domain.Direction
	// DTLSParameters returns the local security parameters for connect-negotiation.
	DTLSParameters() (json.RawMessage, error)
	// Produce is only valid on a send transport.
	Produce(track LocalTrack, opts ProduceOptions) (PendingProduce, error)
	// Consume is only valid on a recv transport.
	Consume(p ConsumeParams) (Consumer, error)
	Close() error
}

// Device negotiates local capabilities against the server's and builds transports.
type Device interface {
	Load(serverCaps json.RawMessage) error
	Loaded() bool
	RTPCapabilities() json.RawMessage
	CanProduce(kind domain.MediaKind) bool
	CreateTransport(dir domain.Direction, params TransportParams) (Transport, error)
}

type CaptureConstraints struct {
	Width            int
	Height           int
	FrameRate        int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Capturer opens a local device for a slot. Capture may block until the user
// answers a consent prompt; callers bound it with ctx.
type Capturer interface {
	Capture(ctx context.Context, slot domain.Slot, c CaptureConstraints) (LocalTrack, error)
}
