package rtc

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dkeye/meetclient/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Source yields encoded samples for a local track. NextSample blocks for
// roughly the sample duration so the pump is paced by the source.
type Source interface {
	NextSample(ctx context.Context) (media.Sample, error)
}

// SampleTrack is a local track fed by a Source once its producer is committed.
type SampleTrack struct {
	slot   domain.Slot
	local  *webrtc.TrackLocalStaticSample
	source Source

	ctx     context.Context
	cancel  context.CancelFunc
	pump    conc.WaitGroup
	started atomic.Bool
	stopped sync.Once
}

func newSampleTrack(slot domain.Slot, local *webrtc.TrackLocalStaticSample, src Source) *SampleTrack {
	ctx, cancel := context.WithCancel(context.Background())
	return &SampleTrack{slot: slot, local: local, source: src, ctx: ctx, cancel: cancel}
}

func (t *SampleTrack) ID() string             { return t.local.ID() }
func (t *SampleTrack) Kind() domain.MediaKind { return t.slot.Kind() }
func (t *SampleTrack) Slot() domain.Slot      { return t.slot }

func (t *SampleTrack) startPump() {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	t.pump.Go(t.run)
}

func (t *SampleTrack) run() {
	for {
		s, err := t.source.NextSample(t.ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Str("module", "adapters.rtc").Str("slot", string(t.slot)).Msg("source failed")
			}
			return
		}
		if err := t.local.WriteSample(s); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			log.Warn().Err(err).Str("module", "adapters.rtc").Str("slot", string(t.slot)).Msg("write sample")
		}
	}
}

// Stop releases the source. Safe to call more than once.
func (t *SampleTrack) Stop() {
	t.stopped.Do(func() {
		t.cancel()
		t.pump.Wait()
		if c, ok := t.source.(io.Closer); ok {
			_ = c.Close()
		}
	})
}

// RemoteTrack is a consumed track. It reads RTP once the transport sees it
// and keeps receive counters.
type RemoteTrack struct {
	id   string
	kind domain.MediaKind

	packets atomic.Uint64
	bytes   atomic.Uint64
	lastSeq atomic.Uint32
	ssrc    atomic.Uint32
}

type RemoteStats struct {
	Packets uint64
	Bytes   uint64
	LastSeq uint16
	SSRC    uint32
}

func newRemoteTrack(id string, kind domain.MediaKind) *RemoteTrack {
	return &RemoteTrack{id: id, kind: kind}
}

func (r *RemoteTrack) ID() string             { return r.id }
func (r *RemoteTrack) Kind() domain.MediaKind { return r.kind }

func (r *RemoteTrack) Stats() RemoteStats {
	return RemoteStats{
		Packets: r.packets.Load(),
		Bytes:   r.bytes.Load(),
		LastSeq: uint16(r.lastSeq.Load()),
		SSRC:    r.ssrc.Load(),
	}
}

func (r *RemoteTrack) observe(pkt *rtp.Packet) {
	r.packets.Add(1)
	r.bytes.Add(uint64(len(pkt.Payload)))
	r.lastSeq.Store(uint32(pkt.SequenceNumber))
	r.ssrc.Store(pkt.SSRC)
}

// pump drains the remote track until the transport or the consumer ends it.
func (r *RemoteTrack) pump(src *webrtc.TrackRemote) {
	for {
		pkt, _, err := src.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.rtc").Str("consumer", r.id).Msg("remote track ended")
			return
		}
		r.observe(pkt)
	}
}
