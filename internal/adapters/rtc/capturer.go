package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const streamID = "meetclient"

// SourceFunc opens a source for a slot with the requested constraints.
type SourceFunc func(ctx context.Context, c core.CaptureConstraints) (Source, error)

// Capturer hands out sample tracks for the slots that have a source. A slot
// without one behaves like a missing device.
type Capturer struct {
	mu      sync.RWMutex
	sources map[domain.Slot]SourceFunc
}

// NewCapturer registers a silent microphone. Video slots need a source from Register.
func NewCapturer() *Capturer {
	c := &Capturer{sources: make(map[domain.Slot]SourceFunc)}
	c.Register(domain.SlotMicrophone, func(context.Context, core.CaptureConstraints) (Source, error) {
		return NewSilence(20 * time.Millisecond), nil
	})
	return c
}

func (c *Capturer) Register(slot domain.Slot, f SourceFunc) {
	c.mu.Lock()
	c.sources[slot] = f
	c.mu.Unlock()
}

func (c *Capturer) Capture(ctx context.Context, slot domain.Slot, cons core.CaptureConstraints) (core.LocalTrack, error) {
	c.mu.RLock()
	open, ok := c.sources[slot]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no source for %s", core.ErrDevice, slot)
	}

	src, err := open(ctx, cons)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrDevice, slot, err)
	}
	local, err := webrtc.NewTrackLocalStaticSample(codecFor(slot.Kind()), string(slot)+"-"+uuid.NewString(), streamID)
	if err != nil {
		return nil, fmt.Errorf("rtc: local track: %w", err)
	}
	return newSampleTrack(slot, local, src), nil
}

func codecFor(kind domain.MediaKind) webrtc.RTPCodecCapability {
	if kind == domain.KindAudio {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
}

// opusSilence is one 20ms Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Silence is an audio Source producing Opus silence frames.
type Silence struct {
	frame  time.Duration
	ticker *time.Ticker
}

func NewSilence(frame time.Duration) *Silence {
	return &Silence{frame: frame, ticker: time.NewTicker(frame)}
}

func (s *Silence) NextSample(ctx context.Context) (media.Sample, error) {
	select {
	case <-ctx.Done():
		return media.Sample{}, ctx.Err()
	case <-s.ticker.C:
		return media.Sample{Data: opusSilence, Duration: s.frame}, nil
	}
}

func (s *Silence) Close() error {
	s.ticker.Stop()
	return nil
}
