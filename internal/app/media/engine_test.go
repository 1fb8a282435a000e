package media

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/meetclient/internal/app/media/mediatest"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var caps = json.RawMessage(`{"codecs":[{"kind":"audio","mimeType":"audio/opus"}]}`)

type rig struct {
	engine *Engine
	signal *mediatest.Signal
	sfu    *mediatest.SFU
	device *mediatest.Device
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		signal: mediatest.NewSignal(),
		sfu:    mediatest.NewSFU(),
		device: &mediatest.Device{},
	}
	r.engine = NewEngine(r.signal, r.device, 100*time.Millisecond, nil)
	r.signal.Responder = r.sfu.Respond
	r.signal.Deliver = func(m core.Message) { r.engine.HandleAck(m) }
	t.Cleanup(r.engine.Close)
	return r
}

func (r *rig) loaded(t *testing.T) *rig {
	t.Helper()
	require.NoError(t, r.engine.LoadCapabilities(caps, ""))
	return r
}

func (r *rig) withTransports(t *testing.T) *rig {
	t.Helper()
	ctx := context.Background()
	_, err := r.engine.CreateTransport(ctx, domain.DirectionSend)
	require.NoError(t, err)
	_, err = r.engine.CreateTransport(ctx, domain.DirectionRecv)
	require.NoError(t, err)
	return r
}

func TestLoadCapabilitiesRejectsMissingSet(t *testing.T) {
	r := newRig(t)
	for _, c := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`{}`)} {
		err := r.engine.LoadCapabilities(c, "")
		assert.True(t, core.IsCapabilityError(err), "caps %q", c)
	}
	assert.True(t, r.engine.Preview())
}

func TestLoadCapabilitiesRouterError(t *testing.T) {
	r := newRig(t)
	err := r.engine.LoadCapabilities(caps, "router unavailable")
	var ce *core.CapabilityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "router unavailable", ce.Reason)
	assert.True(t, r.engine.Preview())
}

func TestLoadCapabilitiesDeviceFailure(t *testing.T) {
	r := newRig(t)
	r.device.LoadErr = errors.New("unsupported codec set")
	err := r.engine.LoadCapabilities(caps, "")
	assert.True(t, core.IsCapabilityError(err))
}

func TestPreviewRefusesMedia(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	_, err := r.engine.CreateTransport(ctx, domain.DirectionSend)
	assert.ErrorIs(t, err, core.ErrPreviewMode)
	_, err = r.engine.Produce(ctx, mediatest.NewTrack("a", domain.KindAudio), core.ProduceOptions{})
	assert.ErrorIs(t, err, core.ErrPreviewMode)
	_, err = r.engine.Consume(ctx, domain.RemoteProducerRef{ProducerID: "p"})
	assert.ErrorIs(t, err, core.ErrPreviewMode)
	assert.Zero(t, r.signal.Count(core.EvCreateTransport))
}

func TestJoinMeeting(t *testing.T) {
	r := newRig(t).loaded(t)
	profile := domain.OptimizationProfile{Tier: domain.TierSmall}
	r.sfu.Profile = &profile
	r.sfu.Existing = []core.ProducerEvent{{ParticipantID: "u2", ProducerID: "p9", Kind: domain.KindVideo}}

	joined, err := r.engine.JoinMeeting(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingID("m1"), joined.MeetingID)
	require.NotNil(t, joined.Profile)
	assert.Equal(t, domain.TierSmall, joined.Profile.Tier)
	require.Len(t, joined.Producers, 1)
	assert.Equal(t, domain.ProducerID("p9"), joined.Producers[0].ProducerID)
}

func TestCreateTransportOncePerDirection(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	again, err := r.engine.CreateTransport(context.Background(), domain.DirectionSend)
	require.NoError(t, err)
	assert.Equal(t, domain.TransportID("transport-send"), again.ID())
	assert.Equal(t, 2, r.signal.Count(core.EvCreateTransport))
	assert.Equal(t, 2, r.engine.OpenTransports())
}

func TestCreateTransportServerError(t *testing.T) {
	r := newRig(t).loaded(t)
	r.sfu.Errors[core.EvCreateTransport] = "no router"
	_, err := r.engine.CreateTransport(context.Background(), domain.DirectionSend)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no router")
	assert.Zero(t, r.engine.OpenTransports())
}

func TestProduceConnectsOnce(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]domain.ProducerID, 3)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.engine.Produce(ctx, mediatest.NewTrack("t", domain.KindVideo), core.ProduceOptions{})
			if assert.NoError(t, err) {
				ids[i] = p.ID()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.signal.Count(core.EvConnectTrans))
	assert.Equal(t, 3, r.signal.Count(core.EvProduce))
	assert.ElementsMatch(t, []domain.ProducerID{"producer-1", "producer-2", "producer-3"}, ids)
}

func TestProduceCarriesDiscriminator(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	_, err := r.engine.Produce(context.Background(), mediatest.NewTrack("s", domain.KindVideo),
		core.ProduceOptions{Discriminator: domain.DiscriminatorScreen})
	require.NoError(t, err)

	var req core.ProduceRequest
	require.NoError(t, json.Unmarshal(r.signal.Payloads(core.EvProduce)[0], &req))
	assert.Equal(t, domain.DiscriminatorScreen, req.Discriminator)
	assert.Equal(t, domain.TransportID("transport-send"), req.TransportID)
	assert.NotEmpty(t, req.RequestID)
}

func TestProduceTimeoutAbandons(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	r.sfu.SetHold(core.EvProduce, true)

	_, err := r.engine.Produce(context.Background(), mediatest.NewTrack("t", domain.KindVideo), core.ProduceOptions{})
	require.ErrorIs(t, err, core.ErrNegotiationTimeout)

	send := r.device.Transports()[0]
	assert.Equal(t, 1, send.Aborted())
	assert.Empty(t, send.Producers())
	assert.Equal(t, 1, r.signal.Count(core.EvProduce), "not retried")

	var req core.ProduceRequest
	require.NoError(t, json.Unmarshal(r.signal.Payloads(core.EvProduce)[0], &req))
	assert.True(t, r.engine.HandleAck(mediatest.Msg(core.EvProduced, core.Produced{RequestID: req.RequestID, ProducerID: "late"})))
	assert.Empty(t, send.Producers(), "late acknowledgment dropped")
}

func TestConnectIgnoresOtherTransportAck(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	r.sfu.SetHold(core.EvConnectTrans, true)

	done := make(chan error, 1)
	go func() {
		_, err := r.engine.Produce(context.Background(), mediatest.NewTrack("t", domain.KindAudio), core.ProduceOptions{})
		done <- err
	}()
	require.Eventually(t, func() bool { return r.signal.Count(core.EvConnectTrans) == 1 }, time.Second, 5*time.Millisecond)

	r.engine.HandleAck(mediatest.Msg(core.EvTransportConnected, core.TransportConnected{TransportID: "transport-recv"}))
	err := <-done
	assert.ErrorIs(t, err, core.ErrNegotiationTimeout)
	assert.Zero(t, r.signal.Count(core.EvProduce))
}

func TestConnectRetriedAfterFailure(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	r.sfu.SetHold(core.EvConnectTrans, true)
	_, err := r.engine.Produce(context.Background(), mediatest.NewTrack("t", domain.KindAudio), core.ProduceOptions{})
	require.ErrorIs(t, err, core.ErrNegotiationTimeout)

	r.sfu.SetHold(core.EvConnectTrans, false)
	_, err = r.engine.Produce(context.Background(), mediatest.NewTrack("t", domain.KindAudio), core.ProduceOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, r.signal.Count(core.EvConnectTrans))
}

func TestDuplicateAcknowledgmentsTolerated(t *testing.T) {
	r := newRig(t).loaded(t)
	r.sfu.Duplicate = true
	r.withTransports(t)

	p, err := r.engine.Produce(context.Background(), mediatest.NewTrack("t", domain.KindVideo), core.ProduceOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ProducerID("producer-1"), p.ID())
	assert.Len(t, r.device.Transports()[0].Producers(), 1)
}

func TestHandleAckUnknownAndForeign(t *testing.T) {
	r := newRig(t)
	assert.True(t, r.engine.HandleAck(mediatest.Msg(core.EvProduced, core.Produced{RequestID: "nobody"})))
	assert.True(t, r.engine.HandleAck(core.Message{Type: core.EvConsumed, Data: json.RawMessage(`garbage`)}))
	assert.False(t, r.engine.HandleAck(mediatest.Msg(core.EvNewProducer, core.ProducerEvent{})))
}

func TestProduceWaitsForSendTransport(t *testing.T) {
	r := newRig(t).loaded(t)
	done := make(chan error, 1)
	go func() {
		_, err := r.engine.Produce(context.Background(), mediatest.NewTrack("t", domain.KindVideo), core.ProduceOptions{})
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("produce finished without a send transport")
	case <-time.After(20 * time.Millisecond):
	}
	_, err := r.engine.CreateTransport(context.Background(), domain.DirectionSend)
	require.NoError(t, err)
	assert.NoError(t, <-done)
}

func TestConsumeResumes(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	ref := domain.RemoteProducerRef{ParticipantID: "u2", ProducerID: "p1", Kind: domain.KindVideo, Discriminator: domain.DiscriminatorScreen}

	c, err := r.engine.Consume(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumerID("consumer-p1"), c.ID())
	assert.Equal(t, domain.KindVideo, c.Kind())
	assert.True(t, c.(*mediatest.Consumer).Resumed())
	assert.Equal(t, 1, r.signal.Count(core.EvResumeConsumer))

	var req core.ConsumeRequest
	require.NoError(t, json.Unmarshal(r.signal.Payloads(core.EvConsume)[0], &req))
	assert.Equal(t, domain.DiscriminatorScreen, req.Discriminator)
	assert.NotEmpty(t, req.RTPCapabilities)
}

func TestCloseFailsOutstandingAndClosesTransports(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	r.engine.timeout = 5 * time.Second
	r.sfu.SetHold(core.EvProduce, true)

	done := make(chan error, 1)
	go func() {
		_, err := r.engine.Produce(context.Background(), mediatest.NewTrack("t", domain.KindVideo), core.ProduceOptions{})
		done <- err
	}()
	require.Eventually(t, func() bool { return r.signal.Count(core.EvProduce) == 1 }, time.Second, 5*time.Millisecond)

	r.engine.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("produce still blocked after close")
	}
	assert.Zero(t, r.device.OpenTransports())
	assert.Zero(t, r.engine.OpenTransports())
	r.engine.Close()

	_, err := r.engine.CreateTransport(context.Background(), domain.DirectionSend)
	assert.Error(t, err)
}

func TestCloseProducerNotifiesPeers(t *testing.T) {
	r := newRig(t).loaded(t).withTransports(t)
	p, err := r.engine.Produce(context.Background(), mediatest.NewTrack("s", domain.KindAudio),
		core.ProduceOptions{Discriminator: domain.DiscriminatorScreenAudio})
	require.NoError(t, err)

	require.NoError(t, r.engine.CloseProducer(p, domain.SlotScreenAudio))
	assert.True(t, p.(*mediatest.Producer).Closed())

	var req core.CloseProducerRequest
	require.NoError(t, json.Unmarshal(r.signal.Payloads(core.EvCloseProducer)[0], &req))
	assert.Equal(t, p.ID(), req.ProducerID)
	assert.Equal(t, domain.KindAudio, req.Kind)
	assert.Equal(t, domain.DiscriminatorScreenAudio, req.Discriminator)
}
