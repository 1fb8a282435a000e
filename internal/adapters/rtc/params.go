package rtc

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cast"
)

// Wire shapes of the media server's capability and transport parameters.

type rtcpFeedback struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}

type codecCapability struct {
	Kind                 string         `json:"kind"`
	MimeType             string         `json:"mimeType"`
	ClockRate            uint32         `json:"clockRate"`
	Channels             uint16         `json:"channels,omitempty"`
	PreferredPayloadType uint8          `json:"preferredPayloadType"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RTCPFeedback         []rtcpFeedback `json:"rtcpFeedback,omitempty"`
}

type headerExtension struct {
	Kind        string `json:"kind"`
	URI         string `json:"uri"`
	PreferredID int    `json:"preferredId"`
}

type rtpCapabilities struct {
	Codecs           []codecCapability `json:"codecs"`
	HeaderExtensions []headerExtension `json:"headerExtensions,omitempty"`
}

type iceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"iceLite,omitempty"`
}

type iceCandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Address    string `json:"address"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
}

func (c iceCandidate) sdpValue() string {
	addr := c.Address
	if addr == "" {
		addr = c.IP
	}
	typ := c.Type
	if typ == "" {
		typ = "host"
	}
	return fmt.Sprintf("%s 1 %s %d %s %d typ %s", c.Foundation, strings.ToLower(c.Protocol), c.Priority, addr, c.Port, typ)
}

type fingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type dtlsParameters struct {
	Role         string        `json:"role,omitempty"`
	Fingerprints []fingerprint `json:"fingerprints"`
}

type rtpCodec struct {
	MimeType     string         `json:"mimeType"`
	PayloadType  uint8          `json:"payloadType"`
	ClockRate    uint32         `json:"clockRate"`
	Channels     uint16         `json:"channels,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	RTCPFeedback []rtcpFeedback `json:"rtcpFeedback,omitempty"`
}

type rtpEncoding struct {
	SSRC                  uint32  `json:"ssrc,omitempty"`
	RID                   string  `json:"rid,omitempty"`
	MaxBitrate            int     `json:"maxBitrate,omitempty"`
	MaxFramerate          int     `json:"maxFramerate,omitempty"`
	ScaleResolutionDownBy float64 `json:"scaleResolutionDownBy,omitempty"`
}

type rtcpParameters struct {
	CNAME       string `json:"cname,omitempty"`
	ReducedSize bool   `json:"reducedSize"`
}

type rtpParameters struct {
	MID       string         `json:"mid,omitempty"`
	Codecs    []rtpCodec     `json:"codecs"`
	Encodings []rtpEncoding  `json:"encodings,omitempty"`
	RTCP      rtcpParameters `json:"rtcp"`
}

// remoteParams is the decoded server side of one transport.
type remoteParams struct {
	ICE        iceParameters
	Candidates []iceCandidate
	DTLS       dtlsParameters
}

func decodeRemote(ice, candidates, dtls json.RawMessage) (remoteParams, error) {
	var rp remoteParams
	if err := json.Unmarshal(ice, &rp.ICE); err != nil {
		return rp, fmt.Errorf("iceParameters: %w", err)
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &rp.Candidates); err != nil {
			return rp, fmt.Errorf("iceCandidates: %w", err)
		}
	}
	if err := json.Unmarshal(dtls, &rp.DTLS); err != nil {
		return rp, fmt.Errorf("dtlsParameters: %w", err)
	}
	if rp.ICE.UsernameFragment == "" || rp.ICE.Password == "" {
		return rp, fmt.Errorf("iceParameters: missing credentials")
	}
	if len(rp.DTLS.Fingerprints) == 0 {
		return rp, fmt.Errorf("dtlsParameters: no fingerprints")
	}
	return rp, nil
}

// fmtpLine renders codec parameters as an a=fmtp value with stable key order.
func fmtpLine(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		parts = append(parts, k+"="+cast.ToString(params[k]))
	}
	return strings.Join(parts, ";")
}

func parseFmtp(line string) map[string]any {
	if line == "" {
		return nil
	}
	out := make(map[string]any)
	for part := range strings.SplitSeq(line, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		if n, err := cast.ToInt64E(v); err == nil {
			out[k] = n
		} else {
			out[k] = v
		}
	}
	return out
}

func (c codecCapability) codecType() webrtc.RTPCodecType {
	if c.Kind == "audio" {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

func (c codecCapability) parameters() webrtc.RTPCodecParameters {
	fb := make([]webrtc.RTCPFeedback, 0, len(c.RTCPFeedback))
	for _, f := range c.RTCPFeedback {
		fb = append(fb, webrtc.RTCPFeedback{Type: f.Type, Parameter: f.Parameter})
	}
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     c.MimeType,
			ClockRate:    c.ClockRate,
			Channels:     c.Channels,
			SDPFmtpLine:  fmtpLine(c.Parameters),
			RTCPFeedback: fb,
		},
		PayloadType: webrtc.PayloadType(c.PreferredPayloadType),
	}
}

// codecName is the rtpmap encoding name, "opus" for "audio/opus".
func codecName(mime string) string {
	_, name, ok := strings.Cut(mime, "/")
	if !ok {
		return mime
	}
	return name
}
