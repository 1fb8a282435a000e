package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/meetclient/internal/app/call"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/rs/zerolog/log"
)

const busyReason = "busy"

// applyCall feeds ev to the call machine and runs the resulting effect.
// Effects that need the network run as background tasks.
func (c *Coordinator) applyCall(s *Session, ev call.Event) (call.Transition, error) {
	tr, err := s.calls.Apply(ev)
	if err != nil && !errors.Is(err, core.ErrBusy) {
		log.Debug().Str("module", "app.orch").Err(err).Msg("call event refused")
		return tr, err
	}
	if tr.Changed() {
		log.Info().
			Str("module", "app.orch").
			Str("call_id", string(tr.Call.ID)).
			Str("event", string(tr.Event)).
			Str("from", string(tr.From)).
			Str("to", string(tr.To)).
			Msg("call transition")
	}
	switch tr.Effect {
	case call.EffectJoinMedia:
		meetingID := tr.Call.MeetingID
		c.goTask(func() { c.joinCallMedia(s, meetingID) })
	case call.EffectTeardown:
		c.teardownMedia(s, "call-"+string(tr.To))
	case call.EffectRejectBusy:
		id := tr.Call.ID
		c.goTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.Timeouts.Request)
			defer cancel()
			if err := c.Backend.RejectCall(ctx, id, busyReason); err != nil {
				log.Warn().Str("module", "app.orch").Str("call_id", string(id)).Err(err).Msg("busy reject failed")
			}
		})
	case call.EffectCancelRemote:
		id := tr.Call.ID
		c.goTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.Timeouts.Request)
			defer cancel()
			if err := c.Backend.CancelCall(ctx, id); err != nil {
				log.Warn().Str("module", "app.orch").Str("call_id", string(id)).Err(err).Msg("late cancel failed")
			}
		})
	}
	return tr, err
}

func (c *Coordinator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.Timeouts.Request)
}

// InitiateCall rings callee. A failed initiate returns to idle and never
// touches media; media is joined only once the callee accepts.
func (c *Coordinator) InitiateCall(ctx context.Context, callee domain.UserID, kind domain.CallKind) (*domain.Call, error) {
	if !kind.Valid() {
		return nil, c.report("initiate call", fmt.Errorf("unknown call kind %q", kind))
	}
	s, err := c.current()
	if err != nil {
		return nil, c.report("initiate call", err)
	}
	if _, err := c.applyCall(s, call.Event{Type: call.EvInitiate, CalleeID: callee, Kind: kind}); err != nil {
		return nil, c.report("initiate call", err)
	}

	rctx, cancel := c.callCtx(ctx)
	created, err := c.Backend.InitiateCall(rctx, callee, kind)
	cancel()
	if err != nil {
		_, _ = c.applyCall(s, call.Event{Type: call.EvInitiateFailed})
		return nil, c.report("initiate call", err)
	}
	if _, err := c.applyCall(s, call.Event{Type: call.EvInitiateOK, Call: created}); err != nil {
		return nil, c.report("initiate call", err)
	}
	_, cur := s.calls.Snapshot()
	return cur, nil
}

// AnswerCall accepts the ringing incoming call.
func (c *Coordinator) AnswerCall(ctx context.Context) (*domain.Call, error) {
	s, err := c.current()
	if err != nil {
		return nil, c.report("answer call", err)
	}
	tr, err := c.applyCall(s, call.Event{Type: call.EvAnswer})
	if err != nil {
		return nil, c.report("answer call", err)
	}

	rctx, cancel := c.callCtx(ctx)
	answered, err := c.Backend.AnswerCall(rctx, tr.Call.ID)
	cancel()
	if err != nil {
		_, _ = c.applyCall(s, call.Event{Type: call.EvAnswerFailed})
		return nil, c.report("answer call", err)
	}
	if _, err := c.applyCall(s, call.Event{Type: call.EvAnswerOK, Call: answered}); err != nil {
		return nil, c.report("answer call", err)
	}
	_, cur := s.calls.Snapshot()
	return cur, nil
}

// RejectCall declines the ringing incoming call.
func (c *Coordinator) RejectCall(ctx context.Context, reason string) error {
	return c.terminateCall(ctx, "reject call", call.EvReject, func(ctx context.Context, id domain.CallID) error {
		return c.Backend.RejectCall(ctx, id, reason)
	})
}

// CancelCall withdraws an outgoing call that has not been answered. When the
// backend has not assigned an id yet, the cancel is sent once it does.
func (c *Coordinator) CancelCall(ctx context.Context) error {
	return c.terminateCall(ctx, "cancel call", call.EvCancel, c.Backend.CancelCall)
}

func (c *Coordinator) EndCall(ctx context.Context) error {
	return c.terminateCall(ctx, "end call", call.EvEnd, c.Backend.EndCall)
}

func (c *Coordinator) terminateCall(ctx context.Context, op string, ev call.EventType, notify func(context.Context, domain.CallID) error) error {
	s, err := c.current()
	if err != nil {
		return c.report(op, err)
	}
	tr, err := c.applyCall(s, call.Event{Type: ev})
	if err != nil {
		return c.report(op, err)
	}
	if tr.Call.ID == "" {
		return nil
	}
	rctx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.report(op, notify(rctx, tr.Call.ID))
}

func (c *Coordinator) CallState() (call.State, *domain.Call) {
	s, err := c.current()
	if err != nil {
		return call.StateIdle, nil
	}
	return s.calls.Snapshot()
}

func (c *Coordinator) CallHistory(ctx context.Context, limit int) ([]domain.Call, error) {
	rctx, cancel := c.callCtx(ctx)
	defer cancel()
	calls, err := c.Backend.CallHistory(rctx, limit)
	return calls, c.report("call history", err)
}
