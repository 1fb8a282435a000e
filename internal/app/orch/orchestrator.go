// Package orch composes the call machine, the admission gate and the media
// registries into one session coordinator driven by the signaling channel.
package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/app/admission"
	"github.com/dkeye/meetclient/internal/app/call"
	"github.com/dkeye/meetclient/internal/app/media"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/dkeye/meetclient/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Status is the user-visible connection indicator.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	// StatusFallback: metadata works, media does not.
	StatusFallback Status = "fallback"
)

type Timeouts struct {
	Negotiation time.Duration
	Admission   time.Duration
	Request     time.Duration
}

type Deps struct {
	Backend   core.Backend
	Dialer    core.SignalDialer
	NewDevice func(iceServers []core.ICEServer) core.Device
	Capturer  core.Capturer
	Metrics   *metrics.Metrics
	Timeouts  Timeouts
}

// Coordinator owns at most one authenticated Session. Every public operation
// reports failures through its return value and LastError; nothing panics
// past it.
type Coordinator struct {
	Deps

	mu      sync.Mutex
	session *Session
	status  Status
	lastErr string
	tasks   conc.WaitGroup
}

func New(d Deps) *Coordinator {
	if d.Timeouts.Negotiation <= 0 {
		d.Timeouts.Negotiation = 10 * time.Second
	}
	if d.Timeouts.Admission <= 0 {
		d.Timeouts.Admission = 5 * time.Second
	}
	if d.Timeouts.Request <= 0 {
		d.Timeouts.Request = 10 * time.Second
	}
	return &Coordinator{Deps: d, status: StatusDisconnected}
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	prev := c.status
	c.status = s
	c.mu.Unlock()
	if prev != s {
		log.Info().Str("module", "app.orch").Str("from", string(prev)).Str("to", string(s)).Msg("status")
	}
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// report records err as the last error and hands it back.
func (c *Coordinator) report(op string, err error) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%s: %w", op, err)
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	log.Warn().Str("module", "app.orch").Err(err).Msg("operation failed")
	return err
}

func (c *Coordinator) current() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, core.ErrClosed
	}
	return c.session, nil
}

// goTask runs fn in the background; Close waits for it.
func (c *Coordinator) goTask(fn func()) {
	c.tasks.Go(fn)
}

// Connect authenticates user against the backend and opens signaling. On
// failure the coordinator falls back to metadata-only mode; it never retries.
func (c *Coordinator) Connect(ctx context.Context, user domain.User) error {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return c.report("connect", fmt.Errorf("%w: session already open", core.ErrInvalidTransition))
	}
	c.mu.Unlock()
	c.setStatus(StatusConnecting)

	rctx, cancel := context.WithTimeout(ctx, c.Timeouts.Request)
	err := c.Backend.Ping(rctx)
	cancel()
	if err != nil {
		c.setStatus(StatusFallback)
		return c.report("connect", fmt.Errorf("%w: backend: %w", core.ErrConnectivity, err))
	}
	conn, err := c.Dialer.Dial(ctx)
	if err != nil {
		c.setStatus(StatusFallback)
		return c.report("connect", fmt.Errorf("%w: %w", core.ErrConnectivity, err))
	}

	s := newSession(user, meteredConn{SignalConnection: conn, metrics: c.Metrics}, c.Backend, c.Timeouts.Admission)
	s.calls.OnTransition(func(tr call.Transition) {
		c.Metrics.CallTransition(string(tr.To))
	})
	s.tier.OnChange(func(p domain.OptimizationProfile, reason string) {
		c.Metrics.ProfileChanged(string(p.Tier), reason)
	})

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		conn.Close()
		return c.report("connect", fmt.Errorf("%w: session already open", core.ErrInvalidTransition))
	}
	c.session = s
	c.lastErr = ""
	c.mu.Unlock()

	s.loop.Go(func() { c.dispatch(s) })
	c.setStatus(StatusConnected)
	log.Info().Str("module", "app.orch").Str("user_id", string(user.ID)).Msg("session opened")
	return nil
}

// Close tears the session down: media, then signaling. Safe to call at any
// point and more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s != nil {
		s.closing.Store(true)
		c.teardownMedia(s, "sign-out")
		s.gate.Reset()
		s.signal.Close()
		s.loop.Wait()
		log.Info().Str("module", "app.orch").Str("user_id", string(s.User.ID)).Msg("session closed")
	}
	c.tasks.Wait()
	c.setStatus(StatusDisconnected)
}

// onSignalLost runs when the connection ends without a local Close.
func (c *Coordinator) onSignalLost(s *Session) {
	if s.closing.Load() {
		return
	}
	err := s.signal.Err()
	if err == nil {
		err = errors.New("signaling closed by server")
	}
	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()
	c.teardownMedia(s, "signal-lost")
	_ = c.report("signaling", fmt.Errorf("%w: %w", core.ErrConnectivity, err))
	c.setStatus(StatusDisconnected)
}

type CallView struct {
	State call.State   `json:"state"`
	Call  *domain.Call `json:"call,omitempty"`
}

type BundleView struct {
	ParticipantID domain.UserID                  `json:"participant_id"`
	Tracks        map[domain.BundleSlot][]string `json:"tracks"`
}

// Snapshot is a point-in-time view of the whole session.
type Snapshot struct {
	Status       Status                            `json:"status"`
	LastError    string                            `json:"last_error,omitempty"`
	User         *domain.User                      `json:"user,omitempty"`
	Call         CallView                          `json:"call"`
	Admission    admission.Snapshot                `json:"admission"`
	Meeting      *domain.Meeting                   `json:"meeting,omitempty"`
	MeetingID    domain.MeetingID                  `json:"meeting_id,omitempty"`
	Preview      bool                              `json:"preview"`
	Profile      *domain.OptimizationProfile       `json:"profile,omitempty"`
	Published    map[domain.Slot]domain.ProducerID `json:"published,omitempty"`
	Bundles      []BundleView                      `json:"bundles,omitempty"`
	Transports   int                               `json:"transports"`
	Consumers    int                               `json:"consumers"`
	Participants []domain.Participant              `json:"participants,omitempty"`
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{Status: c.status, LastError: c.lastErr}
	s := c.session
	c.mu.Unlock()
	if s == nil {
		snap.Call.State = call.StateIdle
		snap.Admission.State = admission.StateNone
		return snap
	}
	u := s.User
	snap.User = &u
	snap.Call.State, snap.Call.Call = s.calls.Snapshot()
	snap.Admission = s.gate.Snapshot()
	if p, ok := s.tier.Active(); ok {
		snap.Profile = &p
	}
	snap.Participants = s.roster()
	snap.Meeting = s.currentMeeting()

	ms := s.currentMedia()
	if ms == nil {
		return snap
	}
	snap.MeetingID = ms.meetingID
	snap.Preview = ms.engine.Preview()
	snap.Published = ms.producers.Published()
	snap.Transports = ms.engine.OpenTransports()
	snap.Consumers = ms.consumers.Open()
	for _, b := range ms.consumers.Bundles() {
		bv := BundleView{ParticipantID: b.ParticipantID, Tracks: make(map[domain.BundleSlot][]string)}
		for slot, tracks := range b.Tracks {
			for _, t := range tracks {
				bv.Tracks[slot] = append(bv.Tracks[slot], t.ID())
			}
		}
		snap.Bundles = append(snap.Bundles, bv)
	}
	return snap
}

// Media exposes the registries of the joined meeting, if any.
func (c *Coordinator) Media() (*media.ProducerRegistry, *media.ConsumerRegistry, bool) {
	s, err := c.current()
	if err != nil {
		return nil, nil, false
	}
	ms := s.currentMedia()
	if ms == nil {
		return nil, nil, false
	}
	return ms.producers, ms.consumers, true
}
