package media

import (
	"context"
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

// gatedEngine consumes instantly unless a gate is installed for the producer.
type gatedEngine struct {
	mu        sync.Mutex
	calls     map[domain.ProducerID]int
	gates     map[domain.ProducerID]chan struct{}
	errs      map[domain.ProducerID]error
	consumers map[domain.ProducerID]*mediatest.Consumer
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{
		calls:     map[domain.ProducerID]int{},
		gates:     map[domain.ProducerID]chan struct{}{},
		errs:      map[domain.ProducerID]error{},
		consumers: map[domain.ProducerID]*mediatest.Consumer{},
	}
}

func (g *gatedEngine) gate(id domain.ProducerID) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[id] = ch
	return ch
}

func (g *gatedEngine) Consume(ctx context.Context, ref domain.RemoteProducerRef) (core.Consumer, error) {
	g.mu.Lock()
	g.calls[ref.ProducerID]++
	gate := g.gates[ref.ProducerID]
	err := g.errs[ref.ProducerID]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	c := mediatest.NewConsumer(core.ConsumeParams{
		ConsumerID: domain.ConsumerID("c-" + string(ref.ProducerID)),
		ProducerID: ref.ProducerID,
		Kind:       ref.Kind,
	})
	g.mu.Lock()
	g.consumers[ref.ProducerID] = c
	g.mu.Unlock()
	return c, nil
}

func (g *gatedEngine) callCount(id domain.ProducerID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[id]
}

func (g *gatedEngine) consumer(id domain.ProducerID) *mediatest.Consumer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consumers[id]
}

var (
	camRef    = domain.RemoteProducerRef{ParticipantID: "u2", ProducerID: "cam", Kind: domain.KindVideo}
	screenRef = domain.RemoteProducerRef{ParticipantID: "u2", ProducerID: "scr", Kind: domain.KindVideo, Discriminator: domain.DiscriminatorScreen}
	micRef    = domain.RemoteProducerRef{ParticipantID: "u2", ProducerID: "mic", Kind: domain.KindAudio}
	shareRef  = domain.RemoteProducerRef{ParticipantID: "u2", ProducerID: "sha", Kind: domain.KindAudio, Discriminator: domain.DiscriminatorScreenAudio}
	otherRef  = domain.RemoteProducerRef{ParticipantID: "u3", ProducerID: "cam3", Kind: domain.KindVideo}
)

func announce(t *testing.T, reg *ConsumerRegistry, refs ...domain.RemoteProducerRef) {
	t.Helper()
	for _, ref := range refs {
		ok, err := reg.Announce(context.Background(), ref)
		require.NoError(t, err)
		require.True(t, ok, ref.ProducerID)
	}
}

func TestDuplicateAnnouncementWhilePending(t *testing.T) {
	eng := newGatedEngine()
	reg := NewConsumerRegistry(eng, nil)
	gate := eng.gate("cam")

	first := make(chan bool, 1)
	go func() {
		ok, _ := reg.Announce(context.Background(), camRef)
		first <- ok
	}()
	require.Eventually(t, func() bool { return eng.callCount("cam") == 1 }, time.Second, time.Millisecond)

	ok, err := reg.Announce(context.Background(), camRef)
	require.NoError(t, err)
	assert.False(t, ok)

	close(gate)
	assert.True(t, <-first)

	ok, err = reg.Announce(context.Background(), camRef)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, eng.callCount("cam"))
	assert.Equal(t, 1, reg.Open())
}

func TestCameraAndScreenInEitherOrder(t *testing.T) {
	for name, order := range map[string][]domain.RemoteProducerRef{
		"camera first": {camRef, screenRef},
		"screen first": {screenRef, camRef},
	} {
		t.Run(name, func(t *testing.T) {
			reg := NewConsumerRegistry(newGatedEngine(), nil)
			announce(t, reg, order...)

			b, ok := reg.Bundle("u2")
			require.True(t, ok)
			assert.True(t, b.Has(domain.BundleCamera))
			assert.True(t, b.Has(domain.BundleScreen))
			assert.False(t, b.Has(domain.BundleAudio))
			assert.Equal(t, "remote-cam", b.Tracks[domain.BundleCamera][0].ID())
			assert.Equal(t, "remote-scr", b.Tracks[domain.BundleScreen][0].ID())
		})
	}
}

func TestCameraAndScreenCompletingOutOfOrder(t *testing.T) {
	eng := newGatedEngine()
	reg := NewConsumerRegistry(eng, nil)
	camGate := eng.gate("cam")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := reg.Announce(context.Background(), camRef)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return eng.callCount("cam") == 1 }, time.Second, time.Millisecond)
	announce(t, reg, screenRef)
	close(camGate)
	wg.Wait()

	b, ok := reg.Bundle("u2")
	require.True(t, ok)
	assert.True(t, b.Has(domain.BundleCamera))
	assert.True(t, b.Has(domain.BundleScreen))
}

func TestClosingScreenLeavesCamera(t *testing.T) {
	eng := newGatedEngine()
	reg := NewConsumerRegistry(eng, nil)
	announce(t, reg, camRef, screenRef)

	reg.OnRemoteProducerClosed("scr")

	b, ok := reg.Bundle("u2")
	require.True(t, ok)
	assert.True(t, b.Has(domain.BundleCamera))
	assert.False(t, b.Has(domain.BundleScreen))
	assert.True(t, eng.consumer("scr").Closed())
	assert.False(t, eng.consumer("cam").Closed())
	assert.Equal(t, 1, reg.Open())
}

func TestLastProducerClosedRemovesBundle(t *testing.T) {
	reg := NewConsumerRegistry(newGatedEngine(), nil)
	announce(t, reg, camRef)
	reg.OnRemoteProducerClosed("cam")
	reg.OnRemoteProducerClosed("cam")

	_, ok := reg.Bundle("u2")
	assert.False(t, ok)
	assert.Empty(t, reg.Bundles())

	// a republish under the same id is consumable again
	announce(t, reg, camRef)
	_, ok = reg.Bundle("u2")
	assert.True(t, ok)
}

func TestRepublishWhileFirstConsumeOutstanding(t *testing.T) {
	eng := newGatedEngine()
	reg := NewConsumerRegistry(eng, nil)
	gate := eng.gate("cam")

	first := make(chan bool, 1)
	go func() {
		ok, _ := reg.Announce(context.Background(), camRef)
		first <- ok
	}()
	require.Eventually(t, func() bool { return eng.callCount("cam") == 1 }, time.Second, time.Millisecond)

	reg.OnRemoteProducerClosed("cam")

	type result struct {
		ok  bool
		err error
	}
	second := make(chan result, 1)
	go func() {
		ok, err := reg.Announce(context.Background(), camRef)
		second <- result{ok, err}
	}()
	assert.Never(t, func() bool { return eng.callCount("cam") > 1 }, 50*time.Millisecond, time.Millisecond,
		"second consume must wait for the first to settle")

	close(gate)
	assert.False(t, <-first, "first consumer belongs to the closed producer")
	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.ok)

	assert.Equal(t, 2, eng.callCount("cam"))
	assert.Equal(t, 1, reg.Open())
	b, ok := reg.Bundle("u2")
	require.True(t, ok)
	assert.True(t, b.Has(domain.BundleCamera))
	assert.False(t, eng.consumer("cam").Closed())
}

func TestRepublishAfterFailedFirstConsume(t *testing.T) {
	eng := newGatedEngine()
	reg := NewConsumerRegistry(eng, nil)
	gate := eng.gate("cam")
	eng.mu.Lock()
	eng.errs["cam"] = errors.New("router gone")
	eng.mu.Unlock()

	first := make(chan error, 1)
	go func() {
		_, err := reg.Announce(context.Background(), camRef)
		first <- err
	}()
	require.Eventually(t, func() bool { return eng.callCount("cam") == 1 }, time.Second, time.Millisecond)
	reg.OnRemoteProducerClosed("cam")

	second := make(chan bool, 1)
	go func() {
		ok, _ := reg.Announce(context.Background(), camRef)
		second <- ok
	}()
	assert.Never(t, func() bool { return eng.callCount("cam") > 1 }, 50*time.Millisecond, time.Millisecond)

	eng.mu.Lock()
	delete(eng.errs, "cam")
	eng.mu.Unlock()
	close(gate)
	assert.Error(t, <-first)
	assert.True(t, <-second)
	assert.Equal(t, 1, reg.Open())
}

func TestAudioSlotCombinesMicAndScreenAudio(t *testing.T) {
	reg := NewConsumerRegistry(newGatedEngine(), nil)
	announce(t, reg, micRef, shareRef)

	b, _ := reg.Bundle("u2")
	assert.Len(t, b.Tracks[domain.BundleAudio], 2)

	reg.OnRemoteProducerClosed("sha")
	b, _ = reg.Bundle("u2")
	require.Len(t, b.Tracks[domain.BundleAudio], 1)
	assert.Equal(t, "remote-mic", b.Tracks[domain.BundleAudio][0].ID())
}

func TestParticipantLeft(t *testing.T) {
	eng := newGatedEngine()
	reg := NewConsumerRegistry(eng, nil)
	announce(t, reg, camRef, micRef, otherRef)

	scrGate := eng.gate("scr")
	pending := make(chan bool, 1)
	go func() {
		ok, _ := reg.Announce(context.Background(), screenRef)
		pending <- ok
	}()
	require.Eventually(t, func() bool { return eng.callCount("scr") == 1 }, time.Second, time.Millisecond)

	reg.OnParticipantLeft("u2")
	close(scrGate)
	assert.False(t, <-pending)

	_, ok := reg.Bundle("u2")
	assert.False(t, ok)
	assert.True(t, eng.consumer("cam").Closed())
	assert.True(t, eng.consumer("mic").Closed())
	assert.True(t, eng.consumer("scr").Closed(), "late consumer discarded")
	assert.False(t, eng.consumer("cam3").Closed())
	assert.Equal(t, 1, reg.Open())

	bundles := reg.Bundles()
	require.Len(t, bundles, 1)
	assert.Equal(t, domain.UserID("u3"), bundles[0].ParticipantID)
}

func TestConsumeFailureCanBeRetried(t *testing.T) {
	eng := newGatedEngine()
	eng.errs["cam"] = errors.New("router gone")
	reg := NewConsumerRegistry(eng, nil)

	ok, err := reg.Announce(context.Background(), camRef)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Zero(t, reg.Open())

	delete(eng.errs, "cam")
	announce(t, reg, camRef)
	assert.Equal(t, 2, eng.callCount("cam"))
}

func TestCloseAllConsumers(t *testing.T) {
	eng := newGatedEngine()
	reg := NewConsumerRegistry(eng, nil)
	announce(t, reg, camRef, otherRef)

	require.NoError(t, reg.CloseAll())
	assert.Zero(t, reg.Open())
	assert.Empty(t, reg.Bundles())
	assert.True(t, eng.consumer("cam").Closed())
	assert.True(t, eng.consumer("cam3").Closed())

	_, err := reg.Announce(context.Background(), micRef)
	assert.ErrorIs(t, err, core.ErrNotJoined)
}
