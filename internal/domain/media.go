package domain

type (
	ProducerID  string
	ConsumerID  string
	TransportID string
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Discriminator tags screen-share traffic apart from camera/microphone on the same kind.
type Discriminator string

const (
	DiscriminatorNone        Discriminator = ""
	DiscriminatorScreen      Discriminator = "screen"
	DiscriminatorScreenAudio Discriminator = "screenAudio"
)

type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// Slot is the logical position of a locally published track.
type Slot string

const (
	SlotCamera      Slot = "camera"
	SlotMicrophone  Slot = "microphone"
	SlotScreenVideo Slot = "screen-video"
	SlotScreenAudio Slot = "screen-audio"
)

var Slots = []Slot{SlotCamera, SlotMicrophone, SlotScreenVideo, SlotScreenAudio}

func (s Slot) Valid() bool {
	switch s {
	case SlotCamera, SlotMicrophone, SlotScreenVideo, SlotScreenAudio:
		return true
	}
	return false
}

func (s Slot) Kind() MediaKind {
	if s == SlotMicrophone || s == SlotScreenAudio {
		return KindAudio
	}
	return KindVideo
}

func (s Slot) Discriminator() Discriminator {
	switch s {
	case SlotScreenVideo:
		return DiscriminatorScreen
	case SlotScreenAudio:
		return DiscriminatorScreenAudio
	}
	return DiscriminatorNone
}

// RemoteProducerRef identifies a track another participant published.
type RemoteProducerRef struct {
	ParticipantID UserID        `json:"participant_id"`
	ProducerID    ProducerID    `json:"producer_id"`
	Kind          MediaKind     `json:"kind"`
	Discriminator Discriminator `json:"discriminator,omitempty"`
}

// BundleSlot is where a consumed track is played back for its participant.
type BundleSlot string

const (
	BundleCamera BundleSlot = "camera"
	BundleScreen BundleSlot = "screen"
	BundleAudio  BundleSlot = "audio"
)

// BundleSlot picks the playback slot. Microphone and screen audio share BundleAudio.
func (r RemoteProducerRef) BundleSlot() BundleSlot {
	if r.Kind == KindAudio {
		return BundleAudio
	}
	if r.Discriminator == DiscriminatorScreen {
		return BundleScreen
	}
	return BundleCamera
}
