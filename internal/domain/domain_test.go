package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	cases := map[int]Tier{1: TierSmall, 4: TierSmall, 5: TierMedium, 10: TierMedium, 11: TierLarge, 25: TierLarge, 26: TierXLarge}
	for n, want := range cases {
		assert.Equal(t, want, TierFor(n), "participants=%d", n)
	}
	assert.Less(t, TierSmall.Rank(), TierXLarge.Rank())
}

func TestBundleSlot(t *testing.T) {
	assert.Equal(t, BundleCamera, RemoteProducerRef{Kind: KindVideo}.BundleSlot())
	assert.Equal(t, BundleScreen, RemoteProducerRef{Kind: KindVideo, Discriminator: DiscriminatorScreen}.BundleSlot())
	assert.Equal(t, BundleAudio, RemoteProducerRef{Kind: KindAudio}.BundleSlot())
	assert.Equal(t, BundleAudio, RemoteProducerRef{Kind: KindAudio, Discriminator: DiscriminatorScreenAudio}.BundleSlot())
}

func TestSlotMapping(t *testing.T) {
	assert.Equal(t, KindAudio, SlotScreenAudio.Kind())
	assert.Equal(t, DiscriminatorScreenAudio, SlotScreenAudio.Discriminator())
	assert.Equal(t, DiscriminatorNone, SlotCamera.Discriminator())
	assert.False(t, Slot("webcam").Valid())
}

func TestNewWaitingRoomDeduplicates(t *testing.T) {
	now := time.Now()
	wr := NewWaitingRoom([]WaitingRoomEntry{
		{UserID: "u1", DisplayName: "Ann", RequestedAt: now, Status: Waiting},
		{UserID: "u1", DisplayName: "Ann", RequestedAt: now.Add(-time.Minute), Status: Waiting},
		{UserID: "u2", DisplayName: "Bob", RequestedAt: now, Status: Waiting},
	})
	assert.Len(t, wr, 2)
	assert.Equal(t, now, wr["u1"].RequestedAt)
}

func TestNewUserValidates(t *testing.T) {
	_, err := NewUser("")
	assert.ErrorIs(t, err, ErrDisplayNameEmpty)
	u, err := NewUser("Ann")
	assert.NoError(t, err)
	assert.Len(t, string(u.ID), MaxUserIDLen)
}
