package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// section is one m-line the server side of a transport describes.
type section struct {
	mid    string
	kind   string
	codecs []rtpCodec
	// direction seen from the server: recvonly, sendonly or inactive.
	direction string
	ssrc      uint32
	cname     string
	streamID  string
}

func newSessionDescription(remote remoteParams, mids []string) (*sdp.SessionDescription, error) {
	sd, err := sdp.NewJSEPSessionDescription(false)
	if err != nil {
		return nil, err
	}
	if remote.ICE.ICELite {
		sd = sd.WithPropertyAttribute(sdp.AttrKeyICELite)
	}
	if len(mids) > 0 {
		sd = sd.WithValueAttribute(sdp.AttrKeyGroup, "BUNDLE "+strings.Join(mids, " "))
	}
	sd = sd.WithValueAttribute(sdp.AttrKeyMsidSemantic, "WMS *")
	return sd, nil
}

func mediaSection(remote remoteParams, s section, setup string) *sdp.MediaDescription {
	md := sdp.NewJSEPMediaDescription(s.kind, nil).
		WithValueAttribute(sdp.AttrKeyMID, s.mid).
		WithICECredentials(remote.ICE.UsernameFragment, remote.ICE.Password).
		WithValueAttribute(sdp.AttrKeyConnectionSetup, setup).
		WithPropertyAttribute(sdp.AttrKeyRTCPMux).
		WithPropertyAttribute(sdp.AttrKeyRTCPRsize).
		WithPropertyAttribute(s.direction)
	for _, fp := range remote.DTLS.Fingerprints {
		md = md.WithFingerprint(fp.Algorithm, strings.ToUpper(fp.Value))
	}
	for _, c := range s.codecs {
		md = md.WithCodec(c.PayloadType, codecName(c.MimeType), c.ClockRate, c.Channels, fmtpLine(c.Parameters))
		for _, fb := range c.RTCPFeedback {
			value := fmt.Sprintf("%d %s", c.PayloadType, fb.Type)
			if fb.Parameter != "" {
				value += " " + fb.Parameter
			}
			md = md.WithValueAttribute("rtcp-fb", value)
		}
	}
	if s.ssrc != 0 {
		md = md.WithMediaSource(s.ssrc, s.cname, s.streamID, s.mid)
	}
	for _, c := range remote.Candidates {
		md = md.WithCandidate(c.sdpValue())
	}
	return md.WithPropertyAttribute(sdp.AttrKeyEndOfCandidates)
}

// remoteAnswer builds the server's answer to a local send offer. Every offered
// m-line is answered in order; the server only ever receives on it.
func remoteAnswer(offer string, remote remoteParams, codecs func(kind string) []rtpCodec) (string, error) {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(offer)); err != nil {
		return "", fmt.Errorf("parse local offer: %w", err)
	}

	var sections []section
	var mids []string
	for _, m := range parsed.MediaDescriptions {
		mid, _ := m.Attribute(sdp.AttrKeyMID)
		kind := m.MediaName.Media
		direction := "recvonly"
		if _, inactive := m.Attribute(sdp.AttrKeyInactive); inactive {
			direction = "inactive"
		} else if _, ro := m.Attribute(sdp.AttrKeyRecvOnly); ro {
			direction = "inactive"
		}
		sections = append(sections, section{mid: mid, kind: kind, codecs: codecs(kind), direction: direction})
		mids = append(mids, mid)
	}

	sd, err := newSessionDescription(remote, mids)
	if err != nil {
		return "", err
	}
	for _, s := range sections {
		sd = sd.WithMedia(mediaSection(remote, s, "passive"))
	}
	out, err := sd.Marshal()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// remoteOffer describes every consumer a recv transport ever carried, closed
// ones as inactive so m-line order never changes.
func remoteOffer(remote remoteParams, sections []section) (string, error) {
	mids := make([]string, 0, len(sections))
	for _, s := range sections {
		mids = append(mids, s.mid)
	}
	sd, err := newSessionDescription(remote, mids)
	if err != nil {
		return "", err
	}
	for _, s := range sections {
		sd = sd.WithMedia(mediaSection(remote, s, "actpass"))
	}
	out, err := sd.Marshal()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
