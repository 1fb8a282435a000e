// Package media drives the device, the two transports and the local and
// remote track registries of one joined meeting.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/app"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/dkeye/meetclient/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// connectCall lets concurrent users of a transport share one connect-negotiation.
type connectCall struct {
	done chan struct{}
	err  error
}

// Engine owns the device and the send/recv transports of one meeting. Every
// negotiation is an explicit request correlated by a token; acknowledgments
// are fed in through HandleAck.
type Engine struct {
	sig     core.Emitter
	device  core.Device
	pending *app.Pending
	timeout time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu         sync.Mutex
	transports map[domain.Direction]core.Transport
	ready      map[domain.Direction]chan struct{}
	connects   map[domain.TransportID]*connectCall
	closed     bool
	done       chan struct{}
}

func NewEngine(sig core.Emitter, device core.Device, timeout time.Duration, m *metrics.Metrics) *Engine {
	ready := map[domain.Direction]chan struct{}{
		domain.DirectionSend: make(chan struct{}),
		domain.DirectionRecv: make(chan struct{}),
	}
	return &Engine{
		sig:        sig,
		device:     device,
		pending:    app.NewPending(),
		timeout:    timeout,
		metrics:    m,
		logger:     log.With().Str("module", "app.media").Logger(),
		transports: make(map[domain.Direction]core.Transport),
		ready:      ready,
		connects:   make(map[domain.TransportID]*connectCall),
		done:       make(chan struct{}),
	}
}

// LoadCapabilities negotiates the device against the server's capability set.
// A missing or unusable set yields *core.CapabilityError.
func (e *Engine) LoadCapabilities(serverCaps json.RawMessage, routerErr string) error {
	if routerErr != "" {
		return &core.CapabilityError{Reason: routerErr}
	}
	if len(serverCaps) == 0 || string(serverCaps) == "null" || string(serverCaps) == "{}" {
		return &core.CapabilityError{Reason: "router capabilities absent"}
	}
	if err := e.device.Load(serverCaps); err != nil {
		return &core.CapabilityError{Reason: "device load", Err: err}
	}
	e.logger.Info().Msg("device loaded")
	return nil
}

// Preview reports whether media cannot flow because no capabilities were loaded.
func (e *Engine) Preview() bool { return !e.device.Loaded() }

func (e *Engine) RTPCapabilities() json.RawMessage {
	if !e.device.Loaded() {
		return nil
	}
	return e.device.RTPCapabilities()
}

func (e *Engine) request(ctx context.Context, step, key, event string, payload any) (json.RawMessage, error) {
	select {
	case <-e.done:
		return nil, core.ErrClosed
	default:
	}
	data, err := e.pending.Request(ctx, key, e.timeout, func() error {
		return e.sig.Emit(event, payload)
	})
	if errors.Is(err, core.ErrNegotiationTimeout) {
		e.metrics.NegotiationTimeout(step)
		e.logger.Warn().Str("step", step).Str("key", key).Msg("negotiation abandoned")
	}
	return data, err
}

// JoinMeeting announces this client to the meeting's media router.
func (e *Engine) JoinMeeting(ctx context.Context, id domain.MeetingID) (*core.MeetingJoined, error) {
	data, err := e.request(ctx, "join", joinKey(id), core.EvJoinMeeting, core.JoinMeetingRequest{
		MeetingID:       id,
		RTPCapabilities: e.RTPCapabilities(),
	})
	if err != nil {
		return nil, fmt.Errorf("join meeting %s: %w", id, err)
	}
	var joined core.MeetingJoined
	if err := json.Unmarshal(data, &joined); err != nil {
		return nil, fmt.Errorf("decode meeting-joined: %w", err)
	}
	return &joined, nil
}

// CreateTransport builds the transport for dir, once.
func (e *Engine) CreateTransport(ctx context.Context, dir domain.Direction) (core.Transport, error) {
	if e.Preview() {
		return nil, core.ErrPreviewMode
	}
	e.mu.Lock()
	if t, ok := e.transports[dir]; ok {
		e.mu.Unlock()
		return t, nil
	}
	e.mu.Unlock()

	data, err := e.request(ctx, "create-transport", transportKey(dir), core.EvCreateTransport, core.CreateTransportRequest{Direction: dir})
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", dir, err)
	}
	var created core.TransportCreated
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("decode transport-created: %w", err)
	}
	t, err := e.device.CreateTransport(dir, created.TransportParams)
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", dir, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = t.Close()
		return nil, core.ErrClosed
	}
	if existing, ok := e.transports[dir]; ok {
		e.mu.Unlock()
		_ = t.Close()
		return existing, nil
	}
	e.transports[dir] = t
	close(e.ready[dir])
	e.mu.Unlock()

	e.metrics.TransportOpened()
	e.logger.Info().Str("direction", string(dir)).Str("transport_id", string(t.ID())).Msg("transport created")
	return t, nil
}

// Transport waits until the transport for dir exists.
func (e *Engine) Transport(ctx context.Context, dir domain.Direction) (core.Transport, error) {
	select {
	case <-e.ready[dir]:
	case <-e.done:
		return nil, core.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, core.ErrClosed
	}
	return e.transports[dir], nil
}

// connect runs connect-negotiation for t at most once; concurrent callers share it.
// A failed attempt is forgotten so a later operation may try again.
func (e *Engine) connect(ctx context.Context, t core.Transport) error {
	id := t.ID()
	e.mu.Lock()
	if cc, ok := e.connects[id]; ok {
		e.mu.Unlock()
		select {
		case <-cc.done:
			return cc.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	cc := &connectCall{done: make(chan struct{})}
	e.connects[id] = cc
	e.mu.Unlock()

	cc.err = e.doConnect(ctx, t)
	if cc.err != nil {
		e.mu.Lock()
		delete(e.connects, id)
		e.mu.Unlock()
	}
	close(cc.done)
	return cc.err
}

func (e *Engine) doConnect(ctx context.Context, t core.Transport) error {
	dtls, err := t.DTLSParameters()
	if err != nil {
		return fmt.Errorf("dtls parameters: %w", err)
	}
	if _, err := e.request(ctx, "connect-transport", connectKey(t.ID()), core.EvConnectTrans, core.ConnectTransportRequest{
		TransportID:    t.ID(),
		DTLSParameters: dtls,
	}); err != nil {
		return fmt.Errorf("connect transport %s: %w", t.ID(), err)
	}
	e.logger.Info().Str("transport_id", string(t.ID())).Msg("transport connected")
	return nil
}

// Produce publishes track on the send transport. The attempt is abandoned,
// not retried, if the server does not acknowledge it in time.
func (e *Engine) Produce(ctx context.Context, track core.LocalTrack, opts core.ProduceOptions) (core.Producer, error) {
	if e.Preview() {
		return nil, core.ErrPreviewMode
	}
	t, err := e.Transport(ctx, domain.DirectionSend)
	if err != nil {
		return nil, err
	}
	if err := e.connect(ctx, t); err != nil {
		return nil, err
	}
	pp, err := t.Produce(track, opts)
	if err != nil {
		return nil, fmt.Errorf("produce %s: %w", track.Kind(), err)
	}
	reqID := uuid.NewString()
	data, err := e.request(ctx, "produce", produceKey(reqID), core.EvProduce, core.ProduceRequest{
		TransportID:   t.ID(),
		Kind:          track.Kind(),
		RTPParameters: pp.RTPParameters(),
		RequestID:     reqID,
		Discriminator: opts.Discriminator,
	})
	if err != nil {
		pp.Abort()
		return nil, fmt.Errorf("produce %s: %w", track.Kind(), err)
	}
	var produced core.Produced
	if err := json.Unmarshal(data, &produced); err != nil || produced.ProducerID == "" {
		pp.Abort()
		return nil, fmt.Errorf("produce %s: bad acknowledgment: %w", track.Kind(), errors.Join(err, core.ErrUnknownCorrelation))
	}
	p, err := pp.Commit(produced.ProducerID)
	if err != nil {
		return nil, fmt.Errorf("commit producer %s: %w", produced.ProducerID, err)
	}
	return p, nil
}

// CloseProducer closes p locally and tells peers, so their consumers go
// away without waiting for track-ended detection.
func (e *Engine) CloseProducer(p core.Producer, slot domain.Slot) error {
	closeErr := p.Close()
	err := e.sig.Emit(core.EvCloseProducer, core.CloseProducerRequest{
		ProducerID:    p.ID(),
		Kind:          slot.Kind(),
		Discriminator: slot.Discriminator(),
	})
	return errors.Join(closeErr, err)
}

// Consume requests consumption of a remote producer. Only one request per
// producer id may be outstanding.
func (e *Engine) Consume(ctx context.Context, ref domain.RemoteProducerRef) (core.Consumer, error) {
	if e.Preview() {
		return nil, core.ErrPreviewMode
	}
	t, err := e.Transport(ctx, domain.DirectionRecv)
	if err != nil {
		return nil, err
	}
	if err := e.connect(ctx, t); err != nil {
		return nil, err
	}
	data, err := e.request(ctx, "consume", consumeKey(ref.ProducerID), core.EvConsume, core.ConsumeRequest{
		ProducerID:      ref.ProducerID,
		Kind:            ref.Kind,
		RTPCapabilities: e.RTPCapabilities(),
		Discriminator:   ref.Discriminator,
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", ref.ProducerID, err)
	}
	var consumed core.Consumed
	if err := json.Unmarshal(data, &consumed); err != nil {
		return nil, fmt.Errorf("decode consumed: %w", err)
	}
	if consumed.Kind == "" {
		consumed.Kind = ref.Kind
	}
	c, err := t.Consume(consumed.ConsumeParams)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", ref.ProducerID, err)
	}
	if err := e.sig.Emit(core.EvResumeConsumer, core.ResumeConsumerRequest{ConsumerID: c.ID()}); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("resume consumer %s: %w", c.ID(), err)
	}
	if err := c.Resume(); err != nil {
		e.logger.Warn().Err(err).Str("consumer_id", string(c.ID())).Msg("local resume failed")
	}
	return c, nil
}

// HandleAck routes a correlated acknowledgment to its waiter. It reports
// false for events it does not own. Unmatched acknowledgments are dropped.
func (e *Engine) HandleAck(msg core.Message) bool {
	key, errText, ok := ackKey(msg)
	if !ok {
		return false
	}
	var err error
	if key == "" {
		err = core.ErrUnknownCorrelation
	} else if errText != "" {
		err = e.pending.Reject(key, fmt.Errorf("server: %s", errText))
	} else {
		err = e.pending.Resolve(key, msg.Data)
	}
	if err != nil {
		e.metrics.IgnoredAck(msg.Type)
		e.logger.Debug().Err(err).Str("type", msg.Type).Msg("acknowledgment ignored")
	}
	return true
}

// Close closes both transports and fails every outstanding negotiation. Safe
// to call more than once and on a partially joined engine.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.done)
	transports := e.transports
	e.transports = make(map[domain.Direction]core.Transport)
	e.mu.Unlock()

	e.pending.Close(core.ErrClosed)
	for dir, t := range transports {
		if err := t.Close(); err != nil {
			e.logger.Warn().Err(err).Str("direction", string(dir)).Msg("transport close")
		}
		e.metrics.TransportClosed()
	}
	e.logger.Info().Int("transports", len(transports)).Msg("engine closed")
}

// OpenTransports counts transports not yet closed.
func (e *Engine) OpenTransports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.transports)
}

func joinKey(id domain.MeetingID) string       { return "join:" + string(id) }
func transportKey(dir domain.Direction) string { return "transport:" + string(dir) }
func connectKey(id domain.TransportID) string  { return "connect:" + string(id) }
func produceKey(reqID string) string           { return "produce:" + reqID }
func consumeKey(id domain.ProducerID) string   { return "consume:" + string(id) }

// ackKey extracts the correlation key of an acknowledgment event.
func ackKey(msg core.Message) (key, errText string, ok bool) {
	switch msg.Type {
	case core.EvMeetingJoined:
		var v core.MeetingJoined
		if json.Unmarshal(msg.Data, &v) != nil || v.MeetingID == "" {
			return "", "", true
		}
		return joinKey(v.MeetingID), v.Error, true
	case core.EvTransportCreated:
		var v core.TransportCreated
		if json.Unmarshal(msg.Data, &v) != nil || v.Direction == "" {
			return "", "", true
		}
		return transportKey(v.Direction), v.Error, true
	case core.EvTransportConnected:
		var v core.TransportConnected
		if json.Unmarshal(msg.Data, &v) != nil || v.TransportID == "" {
			return "", "", true
		}
		return connectKey(v.TransportID), v.Error, true
	case core.EvProduced:
		var v core.Produced
		if json.Unmarshal(msg.Data, &v) != nil || v.RequestID == "" {
			return "", "", true
		}
		return produceKey(v.RequestID), v.Error, true
	case core.EvConsumed:
		var v core.Consumed
		if json.Unmarshal(msg.Data, &v) != nil || v.ProducerID == "" {
			return "", "", true
		}
		return consumeKey(v.ProducerID), v.Error, true
	}
	return "", "", false
}
