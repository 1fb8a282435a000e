// Package call tracks the single active or pending call of this client.
package call

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateIdle       State = "idle"
	StateRingingOut State = "ringing-out"
	StateRingingIn  State = "ringing-in"
	// StateAccepted: the local answer is on its way to the backend.
	StateAccepted  State = "accepted"
	StateInCall    State = "in-call"
	StateEnded     State = "ended"
	StateRejected  State = "rejected"
	StateMissed    State = "missed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	switch s {
	case StateEnded, StateRejected, StateMissed, StateCancelled:
		return true
	}
	return false
}

// Settled reports whether a new call may start.
func (s State) Settled() bool { return s == StateIdle || s.Terminal() }

type EventType string

const (
	EvInitiate        EventType = "initiate"
	EvInitiateOK      EventType = "initiate-ok"
	EvInitiateFailed  EventType = "initiate-failed"
	EvIncoming        EventType = "incoming"
	EvAnswer          EventType = "answer"
	EvAnswerOK        EventType = "answer-ok"
	EvAnswerFailed    EventType = "answer-failed"
	EvRemoteAccepted  EventType = "remote-accepted"
	EvReject          EventType = "reject"
	EvCancel          EventType = "cancel"
	EvEnd             EventType = "end"
	EvRemoteRejected  EventType = "remote-rejected"
	EvRemoteMissed    EventType = "remote-missed"
	EvRemoteCancelled EventType = "remote-cancelled"
	EvRemoteEnded     EventType = "remote-ended"
)

type Event struct {
	Type EventType
	// Call carries the backend's view for initiate-ok, incoming and answer-ok.
	Call      *domain.Call
	CallID    domain.CallID
	MeetingID domain.MeetingID
	CalleeID  domain.UserID
	Kind      domain.CallKind
}

// Effect is the side effect the owner must run after a transition.
type Effect int

const (
	EffectNone Effect = iota
	// EffectJoinMedia: the call is accepted, media may now be joined.
	EffectJoinMedia
	// EffectTeardown: the call terminated, tear down any joined media.
	EffectTeardown
	// EffectRejectBusy: a second call arrived while busy, reject it remotely.
	EffectRejectBusy
	// EffectCancelRemote: the call was cancelled locally before its id was known.
	EffectCancelRemote
)

type Transition struct {
	Event  EventType
	From   State
	To     State
	Call   domain.Call
	Effect Effect
}

// Changed reports whether the transition moved the machine.
func (t Transition) Changed() bool { return t.From != t.To }

// Machine is a single reducer over call events. Duplicate or stale events
// are absorbed without effects, so every interleaving of local acks and
// pushes converges on the same state.
type Machine struct {
	mu           sync.Mutex
	state        State
	call         *domain.Call
	now          func() time.Time
	onTransition func(Transition)
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle, now: time.Now}
}

func (m *Machine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	m.onTransition = fn
	m.mu.Unlock()
}

func (m *Machine) Snapshot() (State, *domain.Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.call == nil {
		return m.state, nil
	}
	c := *m.call
	return m.state, &c
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply feeds one event through the reducer.
func (m *Machine) Apply(ev Event) (Transition, error) {
	m.mu.Lock()
	tr, err := m.reduce(ev)
	fn := m.onTransition
	m.mu.Unlock()

	if err != nil {
		log.Debug().Err(err).Str("module", "app.call").Str("event", string(ev.Type)).Str("state", string(tr.From)).Msg("event refused")
	}
	if tr.Changed() {
		log.Info().Str("module", "app.call").Str("event", string(ev.Type)).Str("from", string(tr.From)).Str("to", string(tr.To)).Str("call_id", string(tr.Call.ID)).Msg("transition")
		if fn != nil {
			fn(tr)
		}
	}
	return tr, err
}

func (m *Machine) invalid(ev Event) (Transition, error) {
	return m.stay(ev, EffectNone), fmt.Errorf("%w: %s in %s", core.ErrInvalidTransition, ev.Type, m.state)
}

func (m *Machine) stay(ev Event, eff Effect) Transition {
	tr := Transition{Event: ev.Type, From: m.state, To: m.state, Effect: eff}
	if m.call != nil {
		tr.Call = *m.call
	}
	return tr
}

func (m *Machine) move(ev Event, to State, eff Effect) Transition {
	from := m.state
	m.state = to
	tr := Transition{Event: ev.Type, From: from, To: to, Effect: eff}
	if m.call != nil {
		tr.Call = *m.call
	}
	return tr
}

// matches reports whether a remote event refers to the current call. An
// unknown id on either side is accepted; the initiate response may still be
// in flight when the push arrives.
func (m *Machine) matches(id domain.CallID) bool {
	return m.call == nil || m.call.ID == "" || id == "" || m.call.ID == id
}

func (m *Machine) stamp(status domain.CallStatus) {
	if m.call == nil {
		return
	}
	now := m.now()
	m.call.Status = status
	switch status {
	case domain.CallAccepted:
		if m.call.AnsweredAt == nil {
			m.call.AnsweredAt = &now
		}
	case domain.CallRinging:
		if m.call.StartedAt == nil {
			m.call.StartedAt = &now
		}
	default:
		if m.call.EndedAt == nil {
			m.call.EndedAt = &now
		}
	}
}

// merge folds backend fields into the current call without touching status.
func (m *Machine) merge(c *domain.Call) {
	if c == nil {
		return
	}
	if m.call == nil {
		cp := *c
		m.call = &cp
		return
	}
	status := m.call.Status
	started, answered, ended := m.call.StartedAt, m.call.AnsweredAt, m.call.EndedAt
	meeting := m.call.MeetingID
	*m.call = *c
	m.call.Status = status
	if m.call.StartedAt == nil {
		m.call.StartedAt = started
	}
	if m.call.AnsweredAt == nil {
		m.call.AnsweredAt = answered
	}
	if m.call.EndedAt == nil {
		m.call.EndedAt = ended
	}
	if m.call.MeetingID == "" {
		m.call.MeetingID = meeting
	}
}

func (m *Machine) reduce(ev Event) (Transition, error) {
	switch ev.Type {
	case EvInitiate:
		if !m.state.Settled() {
			return m.invalid(ev)
		}
		m.call = &domain.Call{CalleeID: ev.CalleeID, Kind: ev.Kind}
		m.stamp(domain.CallRinging)
		return m.move(ev, StateRingingOut, EffectNone), nil

	case EvInitiateOK:
		switch {
		case m.state == StateRingingOut || m.state == StateInCall:
			m.merge(ev.Call)
			return m.stay(ev, EffectNone), nil
		case m.state == StateCancelled && m.call != nil && m.call.ID == "":
			m.merge(ev.Call)
			return m.stay(ev, EffectCancelRemote), nil
		case m.state.Terminal() && m.call != nil && (ev.Call == nil || m.matches(ev.Call.ID)):
			// the callee answered with a rejection or timeout before the response got here
			m.merge(ev.Call)
			return m.stay(ev, EffectNone), nil
		}
		return m.invalid(ev)

	case EvInitiateFailed:
		if m.state != StateRingingOut {
			return m.invalid(ev)
		}
		m.call = nil
		return m.move(ev, StateIdle, EffectNone), nil

	case EvIncoming:
		if ev.Call == nil {
			return m.invalid(ev)
		}
		if m.state != StateIdle && m.call != nil && m.call.ID == ev.Call.ID {
			// redelivery of the call we already know about
			return m.stay(ev, EffectNone), nil
		}
		if !m.state.Settled() {
			tr := m.stay(ev, EffectRejectBusy)
			tr.Call = *ev.Call
			return tr, fmt.Errorf("%w: call %s while %s", core.ErrBusy, ev.Call.ID, m.state)
		}
		c := *ev.Call
		m.call = &c
		m.stamp(domain.CallRinging)
		return m.move(ev, StateRingingIn, EffectNone), nil

	case EvAnswer:
		if m.state != StateRingingIn {
			return m.invalid(ev)
		}
		return m.move(ev, StateAccepted, EffectNone), nil

	case EvAnswerOK:
		if m.state == StateInCall {
			return m.stay(ev, EffectNone), nil
		}
		if m.state != StateAccepted {
			return m.invalid(ev)
		}
		m.merge(ev.Call)
		m.stamp(domain.CallAccepted)
		return m.move(ev, StateInCall, EffectJoinMedia), nil

	case EvAnswerFailed:
		if m.state != StateAccepted {
			return m.invalid(ev)
		}
		m.call = nil
		return m.move(ev, StateIdle, EffectNone), nil

	case EvRemoteAccepted:
		if !m.matches(ev.CallID) {
			return m.invalid(ev)
		}
		switch m.state {
		case StateInCall:
			return m.stay(ev, EffectNone), nil
		case StateRingingOut, StateAccepted:
			if m.call.ID == "" {
				m.call.ID = ev.CallID
			}
			if ev.MeetingID != "" {
				m.call.MeetingID = ev.MeetingID
			}
			m.stamp(domain.CallAccepted)
			return m.move(ev, StateInCall, EffectJoinMedia), nil
		}
		return m.invalid(ev)

	case EvReject:
		if m.state != StateRingingIn {
			return m.invalid(ev)
		}
		m.stamp(domain.CallRejected)
		return m.move(ev, StateRejected, EffectTeardown), nil

	case EvCancel:
		if m.state != StateRingingOut {
			return m.invalid(ev)
		}
		m.stamp(domain.CallCancelled)
		return m.move(ev, StateCancelled, EffectTeardown), nil

	case EvEnd:
		if m.state != StateInCall && m.state != StateAccepted {
			return m.invalid(ev)
		}
		m.stamp(domain.CallEnded)
		return m.move(ev, StateEnded, EffectTeardown), nil

	case EvRemoteRejected, EvRemoteMissed, EvRemoteCancelled, EvRemoteEnded:
		if m.state.Settled() {
			// already terminated: the duplicate must not free anything twice
			return m.stay(ev, EffectNone), nil
		}
		if !m.matches(ev.CallID) {
			return m.invalid(ev)
		}
		if m.call.ID == "" {
			m.call.ID = ev.CallID
		}
		to, status := remoteTerminal(ev.Type)
		m.stamp(status)
		return m.move(ev, to, EffectTeardown), nil
	}
	return m.invalid(ev)
}

func remoteTerminal(t EventType) (State, domain.CallStatus) {
	switch t {
	case EvRemoteRejected:
		return StateRejected, domain.CallRejected
	case EvRemoteMissed:
		return StateMissed, domain.CallMissed
	case EvRemoteCancelled:
		return StateCancelled, domain.CallCancelled
	}
	return StateEnded, domain.CallEnded
}
