package mediatest

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
)

// SFU answers client media requests the way the server does. Install it with
// signal.Responder = sfu.Respond.
type SFU struct {
	mu sync.Mutex

	// Hold lists events that get no acknowledgment.
	Hold map[string]bool

	// Drop withholds the acknowledgment of single requests.
	Drop func(event string, payload json.RawMessage) bool

	// Duplicate sends every acknowledgment twice.
	Duplicate bool

	// Errors makes the acknowledgment of an event carry an error.
	Errors map[string]string

	Profile  *domain.OptimizationProfile
	Existing []core.ProducerEvent

	n int
}

func NewSFU() *SFU {
	return &SFU{Hold: map[string]bool{}, Errors: map[string]string{}}
}

func (s *SFU) SetHold(event string, hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Hold[event] = hold
}

func (s *SFU) Respond(event string, payload json.RawMessage) []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Hold[event] || (s.Drop != nil && s.Drop(event, payload)) {
		return nil
	}
	errText := s.Errors[event]
	var out core.Message
	switch event {
	case core.EvJoinMeeting:
		var req core.JoinMeetingRequest
		_ = json.Unmarshal(payload, &req)
		out = Msg(core.EvMeetingJoined, core.MeetingJoined{
			MeetingID: req.MeetingID,
			Profile:   s.Profile,
			Producers: s.Existing,
			Error:     errText,
		})
	case core.EvCreateTransport:
		var req core.CreateTransportRequest
		_ = json.Unmarshal(payload, &req)
		out = Msg(core.EvTransportCreated, core.TransportCreated{
			TransportParams: core.TransportParams{
				ID:             domain.TransportID("transport-" + string(req.Direction)),
				ICEParameters:  json.RawMessage(`{"usernameFragment":"u","password":"p"}`),
				ICECandidates:  json.RawMessage(`[]`),
				DTLSParameters: json.RawMessage(`{"role":"auto","fingerprints":[]}`),
			},
			Direction: req.Direction,
			Error:     errText,
		})
	case core.EvConnectTrans:
		var req core.ConnectTransportRequest
		_ = json.Unmarshal(payload, &req)
		out = Msg(core.EvTransportConnected, core.TransportConnected{TransportID: req.TransportID, Error: errText})
	case core.EvProduce:
		var req core.ProduceRequest
		_ = json.Unmarshal(payload, &req)
		s.n++
		out = Msg(core.EvProduced, core.Produced{
			RequestID:  req.RequestID,
			ProducerID: domain.ProducerID(fmt.Sprintf("producer-%d", s.n)),
			Error:      errText,
		})
	case core.EvConsume:
		var req core.ConsumeRequest
		_ = json.Unmarshal(payload, &req)
		out = Msg(core.EvConsumed, core.Consumed{
			ConsumeParams: core.ConsumeParams{
				ConsumerID:    domain.ConsumerID("consumer-" + string(req.ProducerID)),
				ProducerID:    req.ProducerID,
				Kind:          req.Kind,
				RTPParameters: json.RawMessage(`{}`),
			},
			Discriminator: req.Discriminator,
			Error:         errText,
		})
	default:
		return nil
	}
	if s.Duplicate {
		return []core.Message{out, out}
	}
	return []core.Message{out}
}
