// Package mediatest provides in-memory media and signaling doubles.
package mediatest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
)

type Track struct {
	id      string
	kind    domain.MediaKind
	stopped atomic.Int32
}

func NewTrack(id string, kind domain.MediaKind) *Track { return &Track{id: id, kind: kind} }

func (t *Track) ID() string             { return t.id }
func (t *Track) Kind() domain.MediaKind { return t.kind }
func (t *Track) Stop()                  { t.stopped.Add(1) }
func (t *Track) Stopped() bool          { return t.stopped.Load() > 0 }
func (t *Track) StopCount() int         { return int(t.stopped.Load()) }

type RemoteTrack struct {
	id   string
	kind domain.MediaKind
}

func (t *RemoteTrack) ID() string             { return t.id }
func (t *RemoteTrack) Kind() domain.MediaKind { return t.kind }

type Producer struct {
	id     domain.ProducerID
	track  core.LocalTrack
	closed atomic.Bool
}

func (p *Producer) ID() domain.ProducerID  { return p.id }
func (p *Producer) Track() core.LocalTrack { return p.track }
func (p *Producer) Close() error           { p.closed.Store(true); return nil }
func (p *Producer) Closed() bool           { return p.closed.Load() }

type Consumer struct {
	params  core.ConsumeParams
	track   *RemoteTrack
	resumed atomic.Bool
	closed  atomic.Bool
}

func (c *Consumer) ID() domain.ConsumerID         { return c.params.ConsumerID }
func (c *Consumer) ProducerID() domain.ProducerID { return c.params.ProducerID }
func (c *Consumer) Kind() domain.MediaKind        { return c.params.Kind }
func (c *Consumer) Track() core.RemoteTrack       { return c.track }
func (c *Consumer) Resume() error                 { c.resumed.Store(true); return nil }
func (c *Consumer) Resumed() bool                 { return c.resumed.Load() }
func (c *Consumer) Close() error                  { c.closed.Store(true); return nil }
func (c *Consumer) Closed() bool                  { return c.closed.Load() }

type Transport struct {
	params core.TransportParams
	dir    domain.Direction
	closed atomic.Bool

	mu        sync.Mutex
	producers []*Producer
	consumers []*Consumer
	aborted   int
}

func (t *Transport) ID() domain.TransportID      { return t.params.ID }
func (t *Transport) Direction() domain.Direction { return t.dir }
func (t *Transport) Close() error                { t.closed.Store(true); return nil }
func (t *Transport) Closed() bool                { return t.closed.Load() }

func (t *Transport) DTLSParameters() (json.RawMessage, error) {
	return json.RawMessage(`{"role":"auto","fingerprints":[]}`), nil
}

func (t *Transport) Produce(track core.LocalTrack, opts core.ProduceOptions) (core.PendingProduce, error) {
	if t.dir != domain.DirectionSend {
		return nil, fmt.Errorf("produce on %s transport", t.dir)
	}
	return &pendingProduce{t: t, track: track, opts: opts}, nil
}

func (t *Transport) Consume(p core.ConsumeParams) (core.Consumer, error) {
	if t.dir != domain.DirectionRecv {
		return nil, fmt.Errorf("consume on %s transport", t.dir)
	}
	c := NewConsumer(p)
	t.mu.Lock()
	t.consumers = append(t.consumers, c)
	t.mu.Unlock()
	return c, nil
}

func (t *Transport) Producers() []*Producer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Producer(nil), t.producers...)
}

func (t *Transport) Consumers() []*Consumer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Consumer(nil), t.consumers...)
}

func (t *Transport) Aborted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

type pendingProduce struct {
	t     *Transport
	track core.LocalTrack
	opts  core.ProduceOptions
}

func (p *pendingProduce) RTPParameters() json.RawMessage {
	b, _ := json.Marshal(map[string]any{"maxBitrate": p.opts.MaxBitrate, "encodings": len(p.opts.Encodings)})
	return b
}

func (p *pendingProduce) Commit(id domain.ProducerID) (core.Producer, error) {
	prod := &Producer{id: id, track: p.track}
	p.t.mu.Lock()
	p.t.producers = append(p.t.producers, prod)
	p.t.mu.Unlock()
	return prod, nil
}

func (p *pendingProduce) Abort() {
	p.t.mu.Lock()
	p.t.aborted++
	p.t.mu.Unlock()
}

// Device is a capability-negotiating device that always succeeds unless LoadErr is set.
type Device struct {
	LoadErr error
	// OnLoad runs at the start of every Load.
	OnLoad func()

	mu         sync.Mutex
	loaded     bool
	transports []*Transport
}

func (d *Device) Load(caps json.RawMessage) error {
	if d.OnLoad != nil {
		d.OnLoad()
	}
	if d.LoadErr != nil {
		return d.LoadErr
	}
	d.mu.Lock()
	d.loaded = true
	d.mu.Unlock()
	return nil
}

func (d *Device) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

func (d *Device) RTPCapabilities() json.RawMessage {
	return json.RawMessage(`{"codecs":[{"mimeType":"audio/opus"},{"mimeType":"video/VP8"}]}`)
}

func (d *Device) CanProduce(domain.MediaKind) bool { return d.Loaded() }

func (d *Device) CreateTransport(dir domain.Direction, params core.TransportParams) (core.Transport, error) {
	t := &Transport{params: params, dir: dir}
	d.mu.Lock()
	d.transports = append(d.transports, t)
	d.mu.Unlock()
	return t, nil
}

func (d *Device) Transports() []*Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Transport(nil), d.transports...)
}

// OpenTransports counts transports created and not yet closed.
func (d *Device) OpenTransports() int {
	n := 0
	for _, t := range d.Transports() {
		if !t.Closed() {
			n++
		}
	}
	return n
}

// Capturer hands out fresh tracks. Slots listed in Deny fail; slots listed
// in Block wait for ctx, like an unanswered consent prompt.
type Capturer struct {
	Deny  map[domain.Slot]error
	Block map[domain.Slot]bool

	mu     sync.Mutex
	n      int
	tracks []*Track
}

func (c *Capturer) Capture(ctx context.Context, slot domain.Slot, _ core.CaptureConstraints) (core.LocalTrack, error) {
	if err := c.Deny[slot]; err != nil {
		return nil, err
	}
	if c.Block[slot] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	t := NewTrack(fmt.Sprintf("%s-%d", slot, c.n), slot.Kind())
	c.tracks = append(c.tracks, t)
	return t, nil
}

func (c *Capturer) Tracks() []*Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Track(nil), c.tracks...)
}

func NewConsumer(p core.ConsumeParams) *Consumer {
	return &Consumer{params: p, track: &RemoteTrack{id: "remote-" + string(p.ProducerID), kind: p.Kind}}
}
