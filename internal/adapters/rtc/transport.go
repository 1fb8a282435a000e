package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrWrongDirection  = errors.New("rtc: operation not valid for transport direction")
	ErrTransportClosed = errors.New("rtc: transport closed")
)

// Transport wraps one PeerConnection negotiated against a server transport.
// The server side never sends SDP; it is synthesized from its parameters.
type Transport struct {
	id     domain.TransportID
	dir    domain.Direction
	device *Device
	pc     *webrtc.PeerConnection
	remote remoteParams
	cert   *webrtc.Certificate
	logger zerolog.Logger

	// mu serializes renegotiation.
	mu        sync.Mutex
	sections  []section
	consumers map[string]*Consumer
	closed    bool
}

func newTransport(d *Device, pc *webrtc.PeerConnection, id domain.TransportID, dir domain.Direction, remote remoteParams, cert *webrtc.Certificate) *Transport {
	return &Transport{
		id:        id,
		dir:       dir,
		device:    d,
		pc:        pc,
		remote:    remote,
		cert:      cert,
		logger:    log.With().Str("module", "adapters.rtc").Str("transport", string(id)).Str("dir", string(dir)).Logger(),
		consumers: make(map[string]*Consumer),
	}
}

func (t *Transport) start() {
	t.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		t.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})
	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
	})
	t.pc.OnTrack(t.onTrack)
}

func (t *Transport) ID() domain.TransportID      { return t.id }
func (t *Transport) Direction() domain.Direction { return t.dir }

// DTLSParameters reports the local certificate fingerprints. The synthesized
// remote descriptions always leave this side as the DTLS client.
func (t *Transport) DTLSParameters() (json.RawMessage, error) {
	fps, err := t.cert.GetFingerprints()
	if err != nil {
		return nil, fmt.Errorf("rtc: fingerprints: %w", err)
	}
	p := dtlsParameters{Role: "client"}
	for _, fp := range fps {
		p.Fingerprints = append(p.Fingerprints, fingerprint{Algorithm: fp.Algorithm, Value: fp.Value})
	}
	return json.Marshal(p)
}

func (t *Transport) Produce(track core.LocalTrack, opts core.ProduceOptions) (core.PendingProduce, error) {
	if t.dir != domain.DirectionSend {
		return nil, ErrWrongDirection
	}
	st, ok := track.(*SampleTrack)
	if !ok {
		return nil, fmt.Errorf("rtc: unsupported local track %T", track)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}

	tr, err := t.pc.AddTransceiverFromTrack(st.local, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return nil, fmt.Errorf("rtc: add track: %w", err)
	}
	if err := t.negotiateSend(); err != nil {
		_ = t.pc.RemoveTrack(tr.Sender())
		return nil, err
	}

	params, err := json.Marshal(sendParameters(tr, opts))
	if err != nil {
		_ = t.pc.RemoveTrack(tr.Sender())
		return nil, err
	}
	return &pendingProduce{transport: t, sender: tr.Sender(), track: st, params: params}, nil
}

// negotiateSend runs a local offer against the synthesized server answer.
func (t *Transport) negotiateSend() error {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("rtc: create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("rtc: set local offer: %w", err)
	}
	answer, err := remoteAnswer(offer.SDP, t.remote, t.sendCodecs)
	if err != nil {
		return fmt.Errorf("rtc: remote answer: %w", err)
	}
	if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fmt.Errorf("rtc: set remote answer: %w", err)
	}
	return nil
}

func (t *Transport) sendCodecs(kind string) []rtpCodec {
	caps := t.device.codecs(domain.MediaKind(kind))
	out := make([]rtpCodec, 0, len(caps))
	for _, c := range caps {
		out = append(out, rtpCodec{
			MimeType:     c.MimeType,
			PayloadType:  c.PreferredPayloadType,
			ClockRate:    c.ClockRate,
			Channels:     c.Channels,
			Parameters:   c.Parameters,
			RTCPFeedback: c.RTCPFeedback,
		})
	}
	return out
}

func sendParameters(tr *webrtc.RTPTransceiver, opts core.ProduceOptions) rtpParameters {
	sp := tr.Sender().GetParameters()
	p := rtpParameters{MID: tr.Mid(), RTCP: rtcpParameters{ReducedSize: true}}
	for _, c := range sp.Codecs {
		p.Codecs = append(p.Codecs, rtpCodec{
			MimeType:    c.MimeType,
			PayloadType: uint8(c.PayloadType),
			ClockRate:   c.ClockRate,
			Channels:    c.Channels,
			Parameters:  parseFmtp(c.SDPFmtpLine),
		})
	}

	var ssrc uint32
	if len(sp.Encodings) > 0 {
		ssrc = uint32(sp.Encodings[0].SSRC)
	}
	switch {
	case len(opts.Encodings) > 0:
		for i, layer := range opts.Encodings {
			enc := rtpEncoding{
				RID:                   layer.RID,
				MaxBitrate:            layer.MaxBitrate,
				MaxFramerate:          layer.MaxFramerate,
				ScaleResolutionDownBy: layer.ScaleResolutionDownBy,
			}
			if i == 0 {
				enc.SSRC = ssrc
			}
			p.Encodings = append(p.Encodings, enc)
		}
	default:
		p.Encodings = []rtpEncoding{{SSRC: ssrc, MaxBitrate: opts.MaxBitrate, MaxFramerate: opts.MaxFramerate}}
	}
	return p
}

func (t *Transport) removeSender(sender *webrtc.RTPSender) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	if err := t.pc.RemoveTrack(sender); err != nil {
		return fmt.Errorf("rtc: remove track: %w", err)
	}
	return t.negotiateSend()
}

type pendingProduce struct {
	transport *Transport
	sender    *webrtc.RTPSender
	track     *SampleTrack
	params    json.RawMessage
}

func (p *pendingProduce) RTPParameters() json.RawMessage { return p.params }

func (p *pendingProduce) Commit(id domain.ProducerID) (core.Producer, error) {
	if id == "" {
		return nil, errors.New("rtc: empty producer id")
	}
	p.track.startPump()
	return &Producer{id: id, transport: p.transport, sender: p.sender, track: p.track}, nil
}

func (p *pendingProduce) Abort() {
	if err := p.transport.removeSender(p.sender); err != nil {
		p.transport.logger.Warn().Err(err).Msg("abort produce")
	}
}

type Producer struct {
	id        domain.ProducerID
	transport *Transport
	sender    *webrtc.RTPSender
	track     *SampleTrack
	once      sync.Once
}

func (p *Producer) ID() domain.ProducerID  { return p.id }
func (p *Producer) Track() core.LocalTrack { return p.track }

// Close detaches the sender. The track keeps its device until Stop.
func (p *Producer) Close() error {
	var err error
	p.once.Do(func() { err = p.transport.removeSender(p.sender) })
	return err
}

func (t *Transport) Consume(cp core.ConsumeParams) (core.Consumer, error) {
	if t.dir != domain.DirectionRecv {
		return nil, ErrWrongDirection
	}
	var rp rtpParameters
	if err := json.Unmarshal(cp.RTPParameters, &rp); err != nil {
		return nil, fmt.Errorf("rtc: consumer rtpParameters: %w", err)
	}
	if len(rp.Codecs) == 0 {
		return nil, fmt.Errorf("rtc: consumer %s has no codecs", cp.ConsumerID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}

	mid := rp.MID
	if mid == "" {
		mid = strconv.Itoa(len(t.sections))
	}
	s := section{
		mid:       mid,
		kind:      string(cp.Kind),
		codecs:    rp.Codecs,
		direction: "sendonly",
		cname:     rp.RTCP.CNAME,
		streamID:  string(cp.ProducerID),
	}
	if len(rp.Encodings) > 0 {
		s.ssrc = rp.Encodings[0].SSRC
	}
	if s.cname == "" {
		s.cname = string(cp.ProducerID)
	}

	c := &Consumer{
		params:    cp,
		transport: t,
		mid:       mid,
		ssrc:      s.ssrc,
		track:     newRemoteTrack(string(cp.ConsumerID), cp.Kind),
	}
	t.sections = append(t.sections, s)
	t.consumers[mid] = c
	if err := t.negotiateRecv(); err != nil {
		t.sections = t.sections[:len(t.sections)-1]
		delete(t.consumers, mid)
		return nil, err
	}
	return c, nil
}

func (t *Transport) negotiateRecv() error {
	offer, err := remoteOffer(t.remote, t.sections)
	if err != nil {
		return fmt.Errorf("rtc: remote offer: %w", err)
	}
	if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return fmt.Errorf("rtc: set remote offer: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("rtc: create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("rtc: set local answer: %w", err)
	}
	return nil
}

func (t *Transport) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	var mid string
	for _, tr := range t.pc.GetTransceivers() {
		if tr.Receiver() == receiver {
			mid = tr.Mid()
			break
		}
	}
	t.mu.Lock()
	c := t.consumers[mid]
	t.mu.Unlock()

	t.logger.Info().
		Str("kind", track.Kind().String()).
		Str("track_id", track.ID()).
		Str("mid", mid).
		Msg("OnTrack received")
	if c == nil {
		return
	}
	go c.track.pump(track)
}

func (t *Transport) closeConsumer(c *Consumer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	delete(t.consumers, c.mid)
	for i := range t.sections {
		if t.sections[i].mid == c.mid {
			t.sections[i].direction = "inactive"
			t.sections[i].ssrc = 0
		}
	}
	return t.negotiateRecv()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if err := t.pc.Close(); err != nil {
		t.logger.Error().Err(err).Msg("close error")
		return err
	}
	t.logger.Info().Msg("closed")
	return nil
}

type Consumer struct {
	params    core.ConsumeParams
	transport *Transport
	mid       string
	ssrc      uint32
	track     *RemoteTrack
	once      sync.Once
}

func (c *Consumer) ID() domain.ConsumerID         { return c.params.ConsumerID }
func (c *Consumer) ProducerID() domain.ProducerID { return c.params.ProducerID }
func (c *Consumer) Kind() domain.MediaKind        { return c.params.Kind }
func (c *Consumer) Track() core.RemoteTrack       { return c.track }

// Resume asks the sender for a keyframe so video starts without waiting for
// the next periodic one.
func (c *Consumer) Resume() error {
	if c.params.Kind != domain.KindVideo || c.ssrc == 0 {
		return nil
	}
	return c.transport.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: c.ssrc}})
}

func (c *Consumer) Close() error {
	var err error
	c.once.Do(func() { err = c.transport.closeConsumer(c) })
	return err
}
