package orch

import (
	"encoding/json"

	"github.com/dkeye/meetclient/internal/app/admission"
	"github.com/dkeye/meetclient/internal/app/call"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/dkeye/meetclient/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

// meteredConn counts every event emitted on the session's signaling channel.
type meteredConn struct {
	core.SignalConnection
	metrics *metrics.Metrics
}

func (m meteredConn) Emit(event string, payload any) error {
	err := m.SignalConnection.Emit(event, payload)
	if err == nil {
		m.metrics.SignalMessage("out", event)
	}
	return err
}

// dispatch consumes the signaling channel in order. Handlers never block on
// the network; anything that needs a round-trip runs as a task.
func (c *Coordinator) dispatch(s *Session) {
	for msg := range s.signal.Incoming() {
		c.Metrics.SignalMessage("in", msg.Type)
		var pc panics.Catcher
		pc.Try(func() { c.handle(s, msg) })
		if r := pc.Recovered(); r != nil {
			log.Error().
				Str("module", "app.orch").
				Str("type", msg.Type).
				Err(r.AsError()).
				Msg("handler panicked")
		}
	}
	c.onSignalLost(s)
}

func decode[T any](msg core.Message) (T, bool) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		log.Warn().Str("module", "app.orch").Str("type", msg.Type).Err(err).Msg("malformed event dropped")
		return v, false
	}
	return v, true
}

func (c *Coordinator) handle(s *Session, msg core.Message) {
	switch msg.Type {
	case core.EvMeetingJoined, core.EvTransportCreated, core.EvTransportConnected, core.EvProduced, core.EvConsumed:
		if ms := s.currentMedia(); ms != nil {
			ms.engine.HandleAck(msg)
			return
		}
		c.Metrics.IgnoredAck(msg.Type)

	case core.EvIncomingCall:
		in, ok := decode[domain.Call](msg)
		if !ok {
			return
		}
		c.applyCall(s, call.Event{Type: call.EvIncoming, Call: &in})

	case core.EvCallAccepted, core.EvCallRejected, core.EvCallMissed, core.EvCallEnded, core.EvCallCancelled:
		ev, ok := decode[core.CallEvent](msg)
		if !ok {
			return
		}
		c.applyCall(s, call.Event{Type: remoteCallEvent(msg.Type), CallID: ev.CallID, MeetingID: ev.MeetingID})

	case core.EvAdmissionGranted:
		ev, ok := decode[core.AdmissionEvent](msg)
		if !ok {
			return
		}
		if s.gate.OnGranted(ev.MeetingID) {
			id := s.gate.Snapshot().MeetingID
			c.goTask(func() { c.joinMeetingMedia(s, id) })
		}

	case core.EvAdmissionRejected:
		ev, ok := decode[core.AdmissionEvent](msg)
		if !ok {
			return
		}
		if s.gate.OnRejected(ev.MeetingID) {
			c.teardownMedia(s, "admission-rejected")
			_ = c.report("admission", core.ErrNotJoined)
		}

	case core.EvWaitingRoomUpdate:
		if u, ok := decode[admission.WaitingRoomUpdate](msg); ok {
			s.gate.OnWaitingRoomUpdate(u)
		}

	case core.EvAdmissionRequested:
		if ev, ok := decode[core.AdmissionRequestedEvent](msg); ok {
			s.gate.OnAdmissionRequested(ev.MeetingID, ev.Entry)
		}

	case core.EvNewProducer:
		if ev, ok := decode[core.ProducerEvent](msg); ok {
			c.onRemoteProducer(s, ev.Ref())
		}

	case core.EvProducerClosed:
		ev, ok := decode[core.ProducerEvent](msg)
		if !ok {
			return
		}
		if ms := s.currentMedia(); ms != nil {
			ms.consumers.OnRemoteProducerClosed(ev.ProducerID)
		}

	case core.EvParticipantJoined:
		if ev, ok := decode[core.ParticipantEvent](msg); ok && ev.ParticipantID != s.User.ID {
			s.upsertParticipant(domain.Participant{ID: ev.ParticipantID, DisplayName: ev.DisplayName})
		}

	case core.EvParticipantLeft:
		ev, ok := decode[core.ParticipantEvent](msg)
		if !ok {
			return
		}
		s.removeParticipant(ev.ParticipantID)
		if ms := s.currentMedia(); ms != nil {
			ms.consumers.OnParticipantLeft(ev.ParticipantID)
		}

	case core.EvConfigUpdated:
		if ev, ok := decode[core.ConfigUpdated](msg); ok {
			s.tier.Apply(ev.Profile, ev.Reason)
		}

	case core.EvError:
		if ev, ok := decode[core.ErrorEvent](msg); ok {
			c.mu.Lock()
			c.lastErr = "server: " + ev.Message
			c.mu.Unlock()
			log.Warn().Str("module", "app.orch").Str("message", ev.Message).Msg("server error")
		}

	default:
		log.Debug().Str("module", "app.orch").Str("type", msg.Type).Msg("unhandled event")
	}
}

func remoteCallEvent(t string) call.EventType {
	switch t {
	case core.EvCallAccepted:
		return call.EvRemoteAccepted
	case core.EvCallRejected:
		return call.EvRemoteRejected
	case core.EvCallMissed:
		return call.EvRemoteMissed
	case core.EvCallCancelled:
		return call.EvRemoteCancelled
	}
	return call.EvRemoteEnded
}
