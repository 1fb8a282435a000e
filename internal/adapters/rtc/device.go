// Package rtc implements the media device and transports on pion/webrtc.
package rtc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotLoaded     = errors.New("rtc: device not loaded")
	ErrAlreadyLoaded = errors.New("rtc: device already loaded")
	ErrNoCodecs      = errors.New("rtc: no codec in common with the server")
)

// supported lists the codecs this client can send or receive.
var supported = map[string]bool{
	strings.ToLower(webrtc.MimeTypeOpus): true,
	strings.ToLower(webrtc.MimeTypeVP8):  true,
	strings.ToLower(webrtc.MimeTypeVP9):  true,
	strings.ToLower(webrtc.MimeTypeH264): true,
}

// Device negotiates codecs against the server router and builds
// PeerConnection-backed transports sharing one DTLS certificate.
type Device struct {
	iceServers []webrtc.ICEServer
	logger     zerolog.Logger

	mu     sync.RWMutex
	loaded bool
	caps   rtpCapabilities
	api    *webrtc.API
	cert   *webrtc.Certificate
}

func NewDevice(iceServers []core.ICEServer) *Device {
	servers := make([]webrtc.ICEServer, 0, len(iceServers))
	for _, s := range iceServers {
		servers = append(servers, webrtc.ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}
	return &Device{
		iceServers: servers,
		logger:     log.With().Str("module", "adapters.rtc").Logger(),
	}
}

// Load intersects the server's capabilities with the supported codecs and
// prepares the pion API. A device loads at most once.
func (d *Device) Load(serverCaps json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return ErrAlreadyLoaded
	}

	var server rtpCapabilities
	if err := json.Unmarshal(serverCaps, &server); err != nil {
		return fmt.Errorf("rtc: decode capabilities: %w", err)
	}

	me := &webrtc.MediaEngine{}
	var local rtpCapabilities
	for _, c := range server.Codecs {
		if !supported[strings.ToLower(c.MimeType)] {
			continue
		}
		if err := me.RegisterCodec(c.parameters(), c.codecType()); err != nil {
			d.logger.Warn().Err(err).Str("mime", c.MimeType).Msg("codec rejected")
			continue
		}
		local.Codecs = append(local.Codecs, c)
	}
	if len(local.Codecs) == 0 {
		return ErrNoCodecs
	}
	for _, ext := range server.HeaderExtensions {
		typ := webrtc.RTPCodecTypeVideo
		if ext.Kind == "audio" {
			typ = webrtc.RTPCodecTypeAudio
		}
		if err := me.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{URI: ext.URI}, typ); err != nil {
			continue
		}
		local.HeaderExtensions = append(local.HeaderExtensions, ext)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return fmt.Errorf("rtc: interceptors: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("rtc: certificate key: %w", err)
	}
	cert, err := webrtc.GenerateCertificate(key)
	if err != nil {
		return fmt.Errorf("rtc: certificate: %w", err)
	}

	d.api = webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithInterceptorRegistry(ir))
	d.cert = cert
	d.caps = local
	d.loaded = true
	d.logger.Info().Int("codecs", len(local.Codecs)).Msg("device loaded")
	return nil
}

func (d *Device) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// RTPCapabilities returns the negotiated local capabilities, nil before Load.
func (d *Device) RTPCapabilities() json.RawMessage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.loaded {
		return nil
	}
	b, err := json.Marshal(d.caps)
	if err != nil {
		return nil
	}
	return b
}

func (d *Device) CanProduce(kind domain.MediaKind) bool {
	return len(d.codecs(kind)) > 0
}

func (d *Device) codecs(kind domain.MediaKind) []codecCapability {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []codecCapability
	for _, c := range d.caps.Codecs {
		if c.Kind == string(kind) {
			out = append(out, c)
		}
	}
	return out
}

func (d *Device) CreateTransport(dir domain.Direction, params core.TransportParams) (core.Transport, error) {
	d.mu.RLock()
	api, cert, loaded := d.api, d.cert, d.loaded
	d.mu.RUnlock()
	if !loaded {
		return nil, ErrNotLoaded
	}

	remote, err := decodeRemote(params.ICEParameters, params.ICECandidates, params.DTLSParameters)
	if err != nil {
		return nil, fmt.Errorf("rtc: transport %s: %w", params.ID, err)
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   d.iceServers,
		Certificates: []webrtc.Certificate{*cert},
		BundlePolicy: webrtc.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("rtc: peer connection: %w", err)
	}
	t := newTransport(d, pc, params.ID, dir, remote, cert)
	t.start()
	return t, nil
}
