package domain

type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
	TierXLarge Tier = "xlarge"
)

// Upper participant bounds of the first three tiers; anything above is TierXLarge.
const (
	SmallTierMax  = 4
	MediumTierMax = 10
	LargeTierMax  = 25
)

func TierFor(participants int) Tier {
	switch {
	case participants <= SmallTierMax:
		return TierSmall
	case participants <= MediumTierMax:
		return TierMedium
	case participants <= LargeTierMax:
		return TierLarge
	}
	return TierXLarge
}

// Rank orders tiers from smallest to largest meeting size.
func (t Tier) Rank() int {
	switch t {
	case TierSmall:
		return 0
	case TierMedium:
		return 1
	case TierLarge:
		return 2
	case TierXLarge:
		return 3
	}
	return -1
}

type VideoProfile struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	FrameRate  int `json:"frameRate"`
	MaxBitrate int `json:"maxBitrate"`
}

type AudioProfile struct {
	MaxBitrate       int  `json:"maxBitrate"`
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
	AutoGainControl  bool `json:"autoGainControl"`
	DTX              bool `json:"dtx"`
}

type ScreenProfile struct {
	MaxBitrate int `json:"maxBitrate"`
	FrameRate  int `json:"frameRate"`
}

type SimulcastLayer struct {
	RID                   string  `json:"rid"`
	MaxBitrate            int     `json:"maxBitrate"`
	ScaleResolutionDownBy float64 `json:"scaleResolutionDownBy"`
	MaxFramerate          int     `json:"maxFramerate,omitempty"`
}

type FeatureFlags struct {
	EnableVideoByDefault bool `json:"enableVideoByDefault"`
	EnableAudioByDefault bool `json:"enableAudioByDefault"`
	MaxVisibleThumbnails int  `json:"maxVisibleThumbnails"`
	Simulcast            bool `json:"simulcast"`
}

// OptimizationProfile is the server-computed budget for the current meeting size.
// It is always replaced as a whole, never merged.
type OptimizationProfile struct {
	Tier             Tier             `json:"tier"`
	ParticipantCount int              `json:"participantCount"`
	Video            VideoProfile     `json:"video"`
	Audio            AudioProfile     `json:"audio"`
	Screen           ScreenProfile    `json:"screenShare"`
	Simulcast        []SimulcastLayer `json:"simulcastLayers,omitempty"`
	Features         FeatureFlags     `json:"features"`
}

func (p OptimizationProfile) Clone() OptimizationProfile {
	out := p
	if p.Simulcast != nil {
		out.Simulcast = append([]SimulcastLayer(nil), p.Simulcast...)
	}
	return out
}
