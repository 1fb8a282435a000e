// Package tier keeps the active optimization profile pushed by the backend.
package tier

import (
	"sync"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	ReasonMeetingJoined     = "meeting_joined"
	ReasonParticipantJoined = "participant_joined"
	ReasonParticipantLeft   = "participant_left"
)

// Optimizer holds the active profile. It never renegotiates producers that
// are already open; the new budget only applies to later publishes.
type Optimizer struct {
	mu       sync.RWMutex
	active   *domain.OptimizationProfile
	onChange func(domain.OptimizationProfile, string)
}

func New() *Optimizer {
	return &Optimizer{}
}

func (o *Optimizer) OnChange(fn func(p domain.OptimizationProfile, reason string)) {
	o.mu.Lock()
	o.onChange = fn
	o.mu.Unlock()
}

// Apply replaces the active profile wholesale.
func (o *Optimizer) Apply(p domain.OptimizationProfile, reason string) {
	p = p.Clone()
	if p.Tier == "" {
		p.Tier = domain.TierFor(p.ParticipantCount)
	}
	o.mu.Lock()
	prev := o.active
	o.active = &p
	fn := o.onChange
	o.mu.Unlock()

	ev := log.Info().Str("module", "app.tier").Str("tier", string(p.Tier)).Int("participants", p.ParticipantCount).Str("reason", reason)
	if prev != nil {
		ev = ev.Str("from_tier", string(prev.Tier))
	}
	ev.Msg("profile replaced")
	if fn != nil {
		fn(p.Clone(), reason)
	}
}

func (o *Optimizer) Active() (domain.OptimizationProfile, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.active == nil {
		return domain.OptimizationProfile{}, false
	}
	return o.active.Clone(), true
}

func (o *Optimizer) Reset() {
	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()
}

// effective falls back to the small-tier defaults until the backend pushes a profile.
func (o *Optimizer) effective() domain.OptimizationProfile {
	if p, ok := o.Active(); ok {
		return p
	}
	return Default(1)
}

// CaptureConstraints picks device capture settings for slot from the active profile.
func (o *Optimizer) CaptureConstraints(slot domain.Slot) core.CaptureConstraints {
	p := o.effective()
	switch slot {
	case domain.SlotCamera:
		return core.CaptureConstraints{Width: p.Video.Width, Height: p.Video.Height, FrameRate: p.Video.FrameRate}
	case domain.SlotScreenVideo:
		return core.CaptureConstraints{FrameRate: p.Screen.FrameRate}
	case domain.SlotMicrophone:
		return core.CaptureConstraints{
			EchoCancellation: p.Audio.EchoCancellation,
			NoiseSuppression: p.Audio.NoiseSuppression,
			AutoGainControl:  p.Audio.AutoGainControl,
		}
	}
	return core.CaptureConstraints{}
}

// ProduceOptions derives the publish budget for slot.
func (o *Optimizer) ProduceOptions(slot domain.Slot) core.ProduceOptions {
	p := o.effective()
	opts := core.ProduceOptions{Discriminator: slot.Discriminator()}
	switch slot {
	case domain.SlotCamera:
		opts.MaxBitrate = p.Video.MaxBitrate
		opts.MaxFramerate = p.Video.FrameRate
		if p.Features.Simulcast && len(p.Simulcast) > 0 {
			opts.Encodings = append([]domain.SimulcastLayer(nil), p.Simulcast...)
		}
	case domain.SlotScreenVideo:
		opts.MaxBitrate = p.Screen.MaxBitrate
		opts.MaxFramerate = p.Screen.FrameRate
	case domain.SlotMicrophone, domain.SlotScreenAudio:
		opts.MaxBitrate = p.Audio.MaxBitrate
	}
	return opts
}

// Default is the local budget for a meeting of the given size.
func Default(participants int) domain.OptimizationProfile {
	t := domain.TierFor(participants)
	p := domain.OptimizationProfile{
		Tier:             t,
		ParticipantCount: participants,
		Audio:            domain.AudioProfile{EchoCancellation: true, NoiseSuppression: true, AutoGainControl: true},
		Features:         domain.FeatureFlags{EnableAudioByDefault: true, EnableVideoByDefault: true},
	}
	switch t {
	case domain.TierSmall:
		p.Video = domain.VideoProfile{Width: 1280, Height: 720, FrameRate: 30, MaxBitrate: 2_500_000}
		p.Audio.MaxBitrate = 64_000
		p.Screen = domain.ScreenProfile{MaxBitrate: 2_500_000, FrameRate: 15}
		p.Features.MaxVisibleThumbnails = 4
	case domain.TierMedium:
		p.Video = domain.VideoProfile{Width: 960, Height: 540, FrameRate: 24, MaxBitrate: 1_200_000}
		p.Audio.MaxBitrate = 48_000
		p.Screen = domain.ScreenProfile{MaxBitrate: 1_500_000, FrameRate: 10}
		p.Features.MaxVisibleThumbnails = 9
		p.Features.Simulcast = true
		p.Simulcast = []domain.SimulcastLayer{
			{RID: "l", MaxBitrate: 150_000, ScaleResolutionDownBy: 4},
			{RID: "h", MaxBitrate: 1_200_000, ScaleResolutionDownBy: 1},
		}
	case domain.TierLarge:
		p.Video = domain.VideoProfile{Width: 640, Height: 360, FrameRate: 20, MaxBitrate: 600_000}
		p.Audio.MaxBitrate = 32_000
		p.Audio.DTX = true
		p.Screen = domain.ScreenProfile{MaxBitrate: 1_000_000, FrameRate: 8}
		p.Features.MaxVisibleThumbnails = 16
		p.Features.Simulcast = true
		p.Simulcast = []domain.SimulcastLayer{
			{RID: "l", MaxBitrate: 100_000, ScaleResolutionDownBy: 4, MaxFramerate: 15},
			{RID: "h", MaxBitrate: 600_000, ScaleResolutionDownBy: 1},
		}
	default:
		p.Video = domain.VideoProfile{Width: 320, Height: 180, FrameRate: 15, MaxBitrate: 250_000}
		p.Audio.MaxBitrate = 24_000
		p.Audio.DTX = true
		p.Screen = domain.ScreenProfile{MaxBitrate: 800_000, FrameRate: 5}
		p.Features.MaxVisibleThumbnails = 25
		p.Features.EnableVideoByDefault = false
	}
	return p
}
