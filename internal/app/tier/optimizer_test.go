package tier

import (
	"testing"

	"github.com/dkeye/meetclient/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReplacesWholesale(t *testing.T) {
	o := New()
	_, ok := o.Active()
	require.False(t, ok)

	big := Default(12)
	o.Apply(big, ReasonMeetingJoined)
	got, ok := o.Active()
	require.True(t, ok)
	require.Equal(t, domain.TierLarge, got.Tier)
	require.NotEmpty(t, got.Simulcast)

	// the smaller profile carries no simulcast layers; nothing of the old one may survive
	small := domain.OptimizationProfile{
		Tier:             domain.TierSmall,
		ParticipantCount: 3,
		Video:            domain.VideoProfile{Width: 1280, Height: 720, FrameRate: 30, MaxBitrate: 2_000_000},
	}
	o.Apply(small, ReasonParticipantLeft)
	got, _ = o.Active()
	assert.Equal(t, small, got)
	assert.Empty(t, got.Simulcast)
	assert.Zero(t, got.Audio.MaxBitrate)
}

func TestApplyDerivesTierWhenMissing(t *testing.T) {
	o := New()
	o.Apply(domain.OptimizationProfile{ParticipantCount: 30}, ReasonParticipantJoined)
	got, _ := o.Active()
	assert.Equal(t, domain.TierXLarge, got.Tier)
}

func TestActiveIsACopy(t *testing.T) {
	o := New()
	o.Apply(Default(6), ReasonMeetingJoined)
	got, _ := o.Active()
	got.Simulcast[0].MaxBitrate = 1

	again, _ := o.Active()
	assert.NotEqual(t, 1, again.Simulcast[0].MaxBitrate)
}

func TestProduceOptionsFollowActiveProfile(t *testing.T) {
	o := New()
	opts := o.ProduceOptions(domain.SlotCamera)
	assert.Equal(t, 2_500_000, opts.MaxBitrate)
	assert.Empty(t, opts.Encodings)

	o.Apply(Default(8), ReasonParticipantJoined)
	opts = o.ProduceOptions(domain.SlotCamera)
	assert.Equal(t, 1_200_000, opts.MaxBitrate)
	assert.Len(t, opts.Encodings, 2)

	screen := o.ProduceOptions(domain.SlotScreenVideo)
	assert.Equal(t, domain.DiscriminatorScreen, screen.Discriminator)
	assert.Equal(t, 10, screen.MaxFramerate)

	c := o.CaptureConstraints(domain.SlotCamera)
	assert.Equal(t, 960, c.Width)
	assert.Equal(t, 540, c.Height)
}

func TestOnChangeFires(t *testing.T) {
	o := New()
	var reasons []string
	o.OnChange(func(_ domain.OptimizationProfile, reason string) { reasons = append(reasons, reason) })
	o.Apply(Default(2), ReasonMeetingJoined)
	o.Apply(Default(5), ReasonParticipantJoined)
	assert.Equal(t, []string{ReasonMeetingJoined, ReasonParticipantJoined}, reasons)
}
