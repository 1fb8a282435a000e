package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/meetclient/internal/app/admission"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinMeeting joins meetingID through its waiting room when it has one.
// When admission is required the returned snapshot is waiting and media is
// joined later, on admission-granted.
func (c *Coordinator) JoinMeeting(ctx context.Context, meetingID domain.MeetingID) (admission.Snapshot, error) {
	s, err := c.current()
	if err != nil {
		return admission.Snapshot{}, c.report("join meeting", err)
	}
	if ms := s.currentMedia(); ms != nil && ms.meetingID != meetingID {
		return s.gate.Snapshot(), c.report("join meeting", fmt.Errorf("%w: already joined to %s", core.ErrInvalidTransition, ms.meetingID))
	}

	rctx, cancel := context.WithTimeout(ctx, c.Timeouts.Request)
	m, err := c.Backend.JoinMeeting(rctx, meetingID)
	cancel()
	if err != nil {
		return s.gate.Snapshot(), c.report("join meeting", err)
	}
	s.setMeeting(m)

	required, err := s.gate.CheckRequired(ctx, meetingID)
	if err != nil {
		return s.gate.Snapshot(), c.report("join meeting", err)
	}
	if !required {
		err := c.joinMeetingMedia(s, meetingID)
		return s.gate.Snapshot(), err
	}

	snap, err := s.gate.RequestAdmission(ctx, meetingID, s.User.DisplayName)
	if err != nil {
		return snap, c.report("request admission", err)
	}
	log.Info().
		Str("module", "app.orch").
		Str("meeting_id", string(meetingID)).
		Str("admission", string(snap.State)).
		Int("position", snap.Position).
		Msg("admission requested")
	if snap.State.CanJoin() {
		err := c.joinMeetingMedia(s, meetingID)
		return s.gate.Snapshot(), err
	}
	return snap, nil
}

// LeaveMeeting tears media down and forgets the target meeting. The
// signaling connection stays open. Leaving twice is harmless.
func (c *Coordinator) LeaveMeeting() error {
	s, err := c.current()
	if err != nil {
		return c.report("leave meeting", err)
	}
	c.teardownMedia(s, "leave")
	s.gate.Reset()
	s.setMeeting(nil)
	return nil
}

func (c *Coordinator) Meeting() (*domain.Meeting, bool) {
	s, err := c.current()
	if err != nil {
		return nil, false
	}
	m := s.currentMeeting()
	return m, m != nil
}

func (c *Coordinator) Admission() admission.Snapshot {
	s, err := c.current()
	if err != nil {
		return admission.Snapshot{State: admission.StateNone}
	}
	return s.gate.Snapshot()
}

// ListWaiting refreshes and returns the waiting room of a meeting this user hosts.
func (c *Coordinator) ListWaiting(ctx context.Context, meetingID domain.MeetingID) (domain.WaitingRoom, error) {
	s, err := c.current()
	if err != nil {
		return nil, c.report("list waiting", err)
	}
	rctx, cancel := context.WithTimeout(ctx, c.Timeouts.Request)
	defer cancel()
	wr, err := s.gate.ListWaiting(rctx, meetingID)
	return wr, c.report("list waiting", err)
}

// WaitingRoom is the last known mapping, without a round-trip.
func (c *Coordinator) WaitingRoom(meetingID domain.MeetingID) domain.WaitingRoom {
	s, err := c.current()
	if err != nil {
		return domain.WaitingRoom{}
	}
	return s.gate.WaitingRoom(meetingID)
}

// Admit lets user in. The waiting room reflects it only after a refresh or push.
func (c *Coordinator) Admit(ctx context.Context, meetingID domain.MeetingID, user domain.UserID) error {
	s, err := c.current()
	if err != nil {
		return c.report("admit", err)
	}
	rctx, cancel := context.WithTimeout(ctx, c.Timeouts.Request)
	defer cancel()
	return c.report("admit", s.gate.Admit(rctx, meetingID, user))
}

func (c *Coordinator) RejectWaiting(ctx context.Context, meetingID domain.MeetingID, user domain.UserID) error {
	s, err := c.current()
	if err != nil {
		return c.report("reject waiting", err)
	}
	rctx, cancel := context.WithTimeout(ctx, c.Timeouts.Request)
	defer cancel()
	return c.report("reject waiting", s.gate.Reject(rctx, meetingID, user))
}
