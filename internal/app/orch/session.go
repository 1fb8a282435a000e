package orch

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/meetclient/internal/app/admission"
	"github.com/dkeye/meetclient/internal/app/call"
	"github.com/dkeye/meetclient/internal/app/media"
	"github.com/dkeye/meetclient/internal/app/tier"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/sourcegraph/conc"
)

// Session is everything that lives between sign-in and sign-out: the
// signaling connection, the single call, the admission gate and at most one
// joined media session.
type Session struct {
	User   domain.User
	signal core.SignalConnection
	calls  *call.Machine
	gate   *admission.Gate
	tier   *tier.Optimizer
	loop   conc.WaitGroup

	closing atomic.Bool

	mu           sync.Mutex
	meeting      *domain.Meeting
	media        *mediaSession
	participants map[domain.UserID]domain.Participant
}

func newSession(user domain.User, conn core.SignalConnection, api core.AdmissionAPI, admissionTimeout time.Duration) *Session {
	return &Session{
		User:         user,
		signal:       conn,
		calls:        call.NewMachine(),
		gate:         admission.NewGate(api, user.ID, admissionTimeout),
		tier:         tier.New(),
		participants: make(map[domain.UserID]domain.Participant),
	}
}

func (s *Session) currentMedia() *mediaSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

// spawn runs fn on the current media session's work group. It reports false
// when no media session is joined.
func (s *Session) spawn(fn func(ms *mediaSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.media
	if ms == nil {
		return false
	}
	ms.work.Go(func() { fn(ms) })
	return true
}

func (s *Session) setMeeting(m *domain.Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meeting = m
}

func (s *Session) currentMeeting() *domain.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meeting == nil {
		return nil
	}
	m := *s.meeting
	return &m
}

func (s *Session) roster() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Sorted(maps.Keys(s.participants))
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.participants[id])
	}
	return out
}

func (s *Session) upsertParticipant(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.participants[p.ID]; ok && p.DisplayName == "" {
		p.DisplayName = prev.DisplayName
	}
	s.participants[p.ID] = p
}

func (s *Session) removeParticipant(id domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, id)
}

func (s *Session) clearParticipants() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.participants)
}

// mediaSession is one joined meeting: the engine, its two registries and
// every goroutine working on them.
type mediaSession struct {
	meetingID domain.MeetingID
	origin    string
	engine    *media.Engine
	producers *media.ProducerRegistry
	consumers *media.ConsumerRegistry

	ctx    context.Context
	cancel context.CancelFunc
	work   conc.WaitGroup
}

// bind derives a context that also ends when the media session is torn down.
func (ms *mediaSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ms.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
