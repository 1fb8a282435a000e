package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/meetclient/internal/app/call"
	"github.com/dkeye/meetclient/internal/app/media"
	"github.com/dkeye/meetclient/internal/app/tier"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	originCall    = "call"
	originMeeting = "meeting"
)

func (c *Coordinator) joinCallMedia(s *Session, meetingID domain.MeetingID) {
	if meetingID == "" {
		if _, cur := s.calls.Snapshot(); cur != nil {
			meetingID = cur.MeetingID
		}
	}
	wanted := func() bool { return s.calls.State() == call.StateInCall }
	if err := c.joinMedia(context.Background(), s, meetingID, originCall, wanted); err != nil {
		_ = c.report("join call media", err)
	}
}

func (c *Coordinator) joinMeetingMedia(s *Session, meetingID domain.MeetingID) error {
	wanted := func() bool {
		g := s.gate.Snapshot()
		return g.State.CanJoin() && g.MeetingID == meetingID
	}
	return c.report("join meeting media", c.joinMedia(context.Background(), s, meetingID, originMeeting, wanted))
}

// joinMedia builds the media session for meetingID unless one exists. wanted
// is checked under the session lock so a call or admission that ended in the
// meantime never gets media.
func (c *Coordinator) joinMedia(ctx context.Context, s *Session, meetingID domain.MeetingID, origin string, wanted func() bool) error {
	if meetingID == "" {
		return fmt.Errorf("%w: no meeting id", core.ErrNotJoined)
	}
	if ms := s.currentMedia(); ms != nil && ms.meetingID == meetingID {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.Timeouts.Request)
	cfg, cfgErr := c.Backend.WebRTCConfig(rctx, meetingID)
	cancel()
	if cfg == nil {
		cfg = &core.WebRTCConfig{}
	}

	s.mu.Lock()
	if s.closing.Load() || !wanted() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s media join for %s no longer wanted", core.ErrInvalidTransition, origin, meetingID)
	}
	if ms := s.media; ms != nil {
		s.mu.Unlock()
		if ms.meetingID == meetingID {
			return nil
		}
		return fmt.Errorf("%w: already joined to %s", core.ErrInvalidTransition, ms.meetingID)
	}
	ms := c.newMediaSession(s, meetingID, origin, cfg.ICEServers)
	s.media = ms
	s.mu.Unlock()

	capErr := cfgErr
	if capErr != nil {
		capErr = &core.CapabilityError{Reason: "webrtc config", Err: cfgErr}
	} else {
		capErr = ms.engine.LoadCapabilities(cfg.RTPCapabilities, cfg.Error)
	}
	if capErr != nil {
		if !core.IsCapabilityError(capErr) {
			c.teardownIf(s, ms, "capabilities")
			return capErr
		}
		// preview: metadata stays usable, no media flows
		s.mu.Lock()
		current := s.media == ms
		if current {
			c.setStatus(StatusFallback)
		}
		s.mu.Unlock()
		if !current {
			return fmt.Errorf("%w: media for %s torn down during join", core.ErrInvalidTransition, meetingID)
		}
		_ = c.report("media", capErr)
		log.Warn().Str("module", "app.orch").Str("meeting_id", string(meetingID)).Msg("preview mode")
		return nil
	}

	joined, err := ms.engine.JoinMeeting(ms.ctx, meetingID)
	if err != nil {
		c.teardownIf(s, ms, "join-failed")
		return err
	}
	if joined.Profile != nil {
		s.tier.Apply(*joined.Profile, tier.ReasonMeetingJoined)
	} else {
		s.tier.Apply(tier.Default(len(joined.Participants)+1), tier.ReasonMeetingJoined)
	}
	for _, p := range joined.Participants {
		if p.ID != s.User.ID {
			s.upsertParticipant(p)
		}
	}

	g, gctx := errgroup.WithContext(ms.ctx)
	for _, dir := range []domain.Direction{domain.DirectionSend, domain.DirectionRecv} {
		g.Go(func() error {
			_, err := ms.engine.CreateTransport(gctx, dir)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		c.teardownIf(s, ms, "transport-failed")
		return err
	}

	for _, p := range joined.Producers {
		c.onRemoteProducer(s, p.Ref())
	}
	log.Info().
		Str("module", "app.orch").
		Str("meeting_id", string(meetingID)).
		Str("origin", origin).
		Int("existing_producers", len(joined.Producers)).
		Msg("media joined")
	return nil
}

func (c *Coordinator) newMediaSession(s *Session, meetingID domain.MeetingID, origin string, ice []core.ICEServer) *mediaSession {
	engine := media.NewEngine(s.signal, c.NewDevice(ice), c.Timeouts.Negotiation, c.Metrics)
	ctx, cancel := context.WithCancel(context.Background())
	return &mediaSession{
		meetingID: meetingID,
		origin:    origin,
		engine:    engine,
		producers: media.NewProducerRegistry(engine, s.tier, c.Metrics),
		consumers: media.NewConsumerRegistry(engine, c.Metrics),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// onRemoteProducer consumes a producer announced by the server or listed on
// join. Both sources may name the same producer; the registry keeps one.
func (c *Coordinator) onRemoteProducer(s *Session, ref domain.RemoteProducerRef) {
	if ref.ParticipantID == s.User.ID || ref.ProducerID == "" {
		return
	}
	started := s.spawn(func(ms *mediaSession) {
		if ms.engine.Preview() {
			return
		}
		_, err := ms.consumers.Announce(ms.ctx, ref)
		if err != nil && ms.ctx.Err() == nil && !errors.Is(err, core.ErrNotJoined) {
			_ = c.report("consume", err)
		}
	})
	if !started {
		log.Debug().Str("module", "app.orch").Str("producer_id", string(ref.ProducerID)).Msg("producer announced outside media session")
	}
}

func (c *Coordinator) teardownMedia(s *Session, why string) {
	c.teardownIf(s, nil, why)
}

// teardownIf closes the media session, or only ms when it is non-nil and
// still current. Every producer, consumer and transport is closed whatever
// stage the join reached.
func (c *Coordinator) teardownIf(s *Session, only *mediaSession, why string) {
	s.mu.Lock()
	ms := s.media
	if ms == nil || (only != nil && only != ms) {
		s.mu.Unlock()
		return
	}
	s.media = nil
	s.mu.Unlock()

	preview := ms.engine.Preview()
	ms.cancel()
	ms.engine.Close()
	perr := ms.producers.CloseAll()
	cerr := ms.consumers.CloseAll()
	ms.work.Wait()

	if !preview {
		if err := s.signal.Emit(core.EvLeaveMeeting, core.LeaveMeetingRequest{MeetingID: ms.meetingID}); err != nil {
			log.Debug().Str("module", "app.orch").Err(err).Msg("leave-meeting not sent")
		}
	}
	s.tier.Reset()
	s.clearParticipants()

	c.mu.Lock()
	if c.session == s && c.status == StatusFallback {
		c.status = StatusConnected
	}
	c.mu.Unlock()

	l := log.Info()
	if err := errors.Join(perr, cerr); err != nil {
		l = log.Warn().Err(err)
	}
	l.Str("module", "app.orch").
		Str("meeting_id", string(ms.meetingID)).
		Str("origin", ms.origin).
		Str("reason", why).
		Msg("media torn down")
}

// Publish captures slot's device with the active profile's constraints and
// publishes it, replacing whatever the slot held.
func (c *Coordinator) Publish(ctx context.Context, slot domain.Slot) (domain.ProducerID, error) {
	if !slot.Valid() {
		return "", c.report("publish", fmt.Errorf("%w: %q", media.ErrInvalidSlot, slot))
	}
	s, err := c.current()
	if err != nil {
		return "", c.report("publish", err)
	}
	ms := s.currentMedia()
	if ms == nil {
		return "", c.report("publish", core.ErrNotJoined)
	}
	if ms.engine.Preview() {
		return "", c.report("publish", core.ErrPreviewMode)
	}
	pctx, cancel := ms.bind(ctx)
	defer cancel()

	track, err := c.Capturer.Capture(pctx, slot, s.tier.CaptureConstraints(slot))
	if err != nil {
		return "", c.report("publish", fmt.Errorf("%w: %s: %w", core.ErrDevice, slot, err))
	}
	lp, err := ms.producers.Publish(pctx, slot, track)
	if err != nil {
		return "", c.report("publish", err)
	}
	return lp.ID(), nil
}

func (c *Coordinator) Unpublish(slot domain.Slot) error {
	s, err := c.current()
	if err != nil {
		return c.report("unpublish", err)
	}
	ms := s.currentMedia()
	if ms == nil {
		return nil
	}
	return c.report("unpublish", ms.producers.Unpublish(slot))
}
