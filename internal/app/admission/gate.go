// Package admission gates media join behind the meeting's waiting room.
package admission

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateNone        State = "none"
	StateChecking    State = "checking"
	StateRequired    State = "required"
	StateNotRequired State = "not-required"
	StateWaiting     State = "waiting"
	StateAdmitted    State = "admitted"
	StateRejected    State = "rejected"
)

// CanJoin reports whether media join may proceed.
func (s State) CanJoin() bool { return s == StateNotRequired || s == StateAdmitted }

type Snapshot struct {
	State     State            `json:"state"`
	MeetingID domain.MeetingID `json:"meeting_id,omitempty"`
	// Position is server-assigned and 1-based; 0 means unknown.
	Position int `json:"position,omitempty"`
}

// WaitingRoomUpdate is the payload of a waiting-room-update push.
type WaitingRoomUpdate struct {
	MeetingID domain.MeetingID          `json:"meetingId"`
	Entries   []domain.WaitingRoomEntry `json:"entries"`
	// Position is only present when the server reports the receiver's own place.
	Position *int `json:"position,omitempty"`
}

// Gate tracks the local participant's admission to one target meeting and,
// for hosts, the waiting-room mapping of the meetings they manage.
type Gate struct {
	api     core.AdmissionAPI
	self    domain.UserID
	timeout time.Duration

	mu        sync.Mutex
	state     State
	meetingID domain.MeetingID
	position  int
	rooms     map[domain.MeetingID]domain.WaitingRoom
}

func NewGate(api core.AdmissionAPI, self domain.UserID, timeout time.Duration) *Gate {
	return &Gate{
		api:     api,
		self:    self,
		timeout: timeout,
		state:   StateNone,
		rooms:   make(map[domain.MeetingID]domain.WaitingRoom),
	}
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{State: g.state, MeetingID: g.meetingID, Position: g.position}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) set(to State) {
	if g.state == to {
		return
	}
	log.Info().Str("module", "app.admission").Str("meeting_id", string(g.meetingID)).Str("from", string(g.state)).Str("to", string(to)).Msg("transition")
	g.state = to
}

// CheckRequired asks whether meetingID enforces admission. Without an answer
// in time the gate fails closed: the state becomes required and the error is returned.
func (g *Gate) CheckRequired(ctx context.Context, meetingID domain.MeetingID) (bool, error) {
	g.mu.Lock()
	g.meetingID = meetingID
	g.position = 0
	g.set(StateChecking)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	res, err := g.api.CheckAdmission(ctx, meetingID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.meetingID != meetingID || g.state != StateChecking {
		return true, fmt.Errorf("%w: admission check for %s superseded", core.ErrInvalidTransition, meetingID)
	}
	if err != nil {
		g.set(StateRequired)
		return true, fmt.Errorf("admission check: %w", err)
	}
	if res.Admitted || !res.Required {
		g.set(StateNotRequired)
		return false, nil
	}
	g.set(StateRequired)
	return true, nil
}

// RequestAdmission places the participant in the waiting room. Requesting
// again while already waiting returns the known position without a second request.
func (g *Gate) RequestAdmission(ctx context.Context, meetingID domain.MeetingID, displayName string) (Snapshot, error) {
	g.mu.Lock()
	if g.meetingID == meetingID && (g.state == StateWaiting || g.state == StateAdmitted) {
		snap := Snapshot{State: g.state, MeetingID: g.meetingID, Position: g.position}
		g.mu.Unlock()
		return snap, nil
	}
	if g.state != StateRequired || g.meetingID != meetingID {
		st := g.state
		g.mu.Unlock()
		return Snapshot{State: st, MeetingID: meetingID}, fmt.Errorf("%w: request admission in %s", core.ErrInvalidTransition, st)
	}
	g.set(StateWaiting)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ticket, err := g.api.RequestAdmission(ctx, meetingID, displayName)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.meetingID != meetingID || g.state != StateWaiting {
		// a push already decided the outcome
		return Snapshot{State: g.state, MeetingID: g.meetingID, Position: g.position}, nil
	}
	if err != nil {
		g.set(StateRequired)
		return Snapshot{State: g.state, MeetingID: meetingID}, fmt.Errorf("request admission: %w", err)
	}
	switch ticket.Status {
	case domain.WaitingAdmitted:
		g.set(StateAdmitted)
	case domain.WaitingRejected:
		g.set(StateRejected)
	default:
		g.position = ticket.Position
	}
	return Snapshot{State: g.state, MeetingID: meetingID, Position: g.position}, nil
}

// OnGranted applies an admission-granted push. It reports whether the gate
// just opened, so the caller proceeds to media join exactly once.
func (g *Gate) OnGranted(meetingID domain.MeetingID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if meetingID != "" && meetingID != g.meetingID {
		return false
	}
	switch g.state {
	case StateWaiting, StateRequired, StateChecking:
		g.set(StateAdmitted)
		return true
	}
	return false
}

// OnRejected applies an admission-rejected push. It reports whether the gate
// just closed; the caller must then discard any partially joined media.
func (g *Gate) OnRejected(meetingID domain.MeetingID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if meetingID != "" && meetingID != g.meetingID {
		return false
	}
	if g.state == StateNone || g.state == StateRejected {
		return false
	}
	g.position = 0
	g.set(StateRejected)
	return true
}

// OnWaitingRoomUpdate refreshes the mapping. The participant's own state is
// never derived from the list: only grant/reject pushes move it.
func (g *Gate) OnWaitingRoomUpdate(u WaitingRoomUpdate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wr := domain.NewWaitingRoom(u.Entries)
	g.rooms[u.MeetingID] = wr
	if g.state != StateWaiting || (u.MeetingID != "" && u.MeetingID != g.meetingID) {
		return
	}
	switch {
	case u.Position != nil:
		g.position = *u.Position
	default:
		if _, listed := wr[g.self]; !listed {
			g.position = 0
		}
	}
}

// OnAdmissionRequested records a new waiting participant for the host view.
func (g *Gate) OnAdmissionRequested(meetingID domain.MeetingID, e domain.WaitingRoomEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wr, ok := g.rooms[meetingID]
	if !ok {
		wr = make(domain.WaitingRoom)
		g.rooms[meetingID] = wr
	}
	if e.Status == "" {
		e.Status = domain.Waiting
	}
	if prev, ok := wr[e.UserID]; ok && prev.RequestedAt.After(e.RequestedAt) {
		return
	}
	wr[e.UserID] = e
}

// WaitingRoom returns a copy of the last known mapping for meetingID.
func (g *Gate) WaitingRoom(meetingID domain.MeetingID) domain.WaitingRoom {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(domain.WaitingRoom, len(g.rooms[meetingID]))
	maps.Copy(out, g.rooms[meetingID])
	return out
}

// ListWaiting fetches the mapping from the backend and replaces the cached one.
func (g *Gate) ListWaiting(ctx context.Context, meetingID domain.MeetingID) (domain.WaitingRoom, error) {
	entries, err := g.api.ListWaiting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}
	wr := domain.NewWaitingRoom(entries)
	g.mu.Lock()
	g.rooms[meetingID] = wr
	g.mu.Unlock()
	return g.WaitingRoom(meetingID), nil
}

// Admit asks the backend to let user in. The effect shows up in a later
// ListWaiting or waiting-room-update, never in the cached mapping directly.
func (g *Gate) Admit(ctx context.Context, meetingID domain.MeetingID, user domain.UserID) error {
	if err := g.api.Admit(ctx, meetingID, user); err != nil {
		return fmt.Errorf("admit %s: %w", user, err)
	}
	return nil
}

func (g *Gate) Reject(ctx context.Context, meetingID domain.MeetingID, user domain.UserID) error {
	if err := g.api.RejectWaiting(ctx, meetingID, user); err != nil {
		return fmt.Errorf("reject %s: %w", user, err)
	}
	return nil
}

// Reset forgets the target meeting; host mappings are kept.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set(StateNone)
	g.meetingID = ""
	g.position = 0
}
