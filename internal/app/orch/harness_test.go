package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/meetclient/internal/app/media/mediatest"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/core/mocks"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	testCaps = json.RawMessage(`{"codecs":[{"kind":"video","mimeType":"video/VP8"}]}`)
	me       = domain.User{ID: "me", DisplayName: "Me"}
)

type backend struct {
	*mocks.MockMeetingAPI
	*mocks.MockCallAPI
	*mocks.MockAdmissionAPI
	core.HostAPI
	core.ContentAPI
}

type harness struct {
	t         *testing.T
	c         *Coordinator
	signal    *mediatest.Signal
	sfu       *mediatest.SFU
	capturer  *mediatest.Capturer
	dialer    *mediatest.Dialer
	meetings  *mocks.MockMeetingAPI
	calls     *mocks.MockCallAPI
	admission *mocks.MockAdmissionAPI

	// prepare customizes each device before the coordinator uses it.
	prepare func(*mediatest.Device)

	mu       sync.Mutex
	devices  []*mediatest.Device
	barriers int
}

func newHarness(t *testing.T, negotiation time.Duration) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		t:         t,
		signal:    mediatest.NewSignal(),
		sfu:       mediatest.NewSFU(),
		capturer:  &mediatest.Capturer{},
		meetings:  mocks.NewMockMeetingAPI(ctrl),
		calls:     mocks.NewMockCallAPI(ctrl),
		admission: mocks.NewMockAdmissionAPI(ctrl),
	}
	h.signal.Responder = h.sfu.Respond
	h.dialer = &mediatest.Dialer{Signal: h.signal}
	h.c = New(Deps{
		Backend:   backend{MockMeetingAPI: h.meetings, MockCallAPI: h.calls, MockAdmissionAPI: h.admission},
		Dialer:    h.dialer,
		NewDevice: h.newDevice,
		Capturer:  h.capturer,
		Timeouts: Timeouts{
			Negotiation: negotiation,
			Admission:   50 * time.Millisecond,
			Request:     time.Second,
		},
	})
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) newDevice([]core.ICEServer) core.Device {
	d := &mediatest.Device{}
	if h.prepare != nil {
		h.prepare(d)
	}
	h.mu.Lock()
	h.devices = append(h.devices, d)
	h.mu.Unlock()
	return d
}

func (h *harness) connect() *harness {
	h.t.Helper()
	h.meetings.EXPECT().Ping(gomock.Any()).Return(nil)
	require.NoError(h.t, h.c.Connect(context.Background(), me))
	return h
}

func (h *harness) serveConfig(id domain.MeetingID) {
	h.meetings.EXPECT().WebRTCConfig(gomock.Any(), id).Return(&core.WebRTCConfig{RTPCapabilities: testCaps}, nil).AnyTimes()
}

func (h *harness) expectOpenMeeting(id domain.MeetingID) {
	h.meetings.EXPECT().JoinMeeting(gomock.Any(), id).Return(&domain.Meeting{ID: id, Title: "standup"}, nil)
	h.admission.EXPECT().CheckAdmission(gomock.Any(), id).Return(core.AdmissionCheck{}, nil)
	h.serveConfig(id)
}

// joinOpen joins a meeting without a waiting room and waits for both transports.
func (h *harness) joinOpen(id domain.MeetingID) {
	h.t.Helper()
	h.expectOpenMeeting(id)
	_, err := h.c.JoinMeeting(context.Background(), id)
	require.NoError(h.t, err)
	require.Equal(h.t, 2, h.openTransports())
}

// inCall rings an incoming call, answers it and waits for media.
func (h *harness) inCall(id domain.CallID, meeting domain.MeetingID) {
	h.t.Helper()
	h.signal.PushEvent(core.EvIncomingCall, domain.Call{ID: id, CallerID: "alice", MeetingID: meeting, Kind: domain.CallVideo})
	h.eventually(func() bool { s, _ := h.c.CallState(); return s == "ringing-in" }, "ringing")

	h.calls.EXPECT().AnswerCall(gomock.Any(), id).Return(&domain.Call{ID: id, CallerID: "alice", MeetingID: meeting, Kind: domain.CallVideo}, nil)
	h.serveConfig(meeting)
	_, err := h.c.AnswerCall(context.Background())
	require.NoError(h.t, err)
	h.eventually(func() bool { return h.openTransports() == 2 }, "transports")
}

func (h *harness) openTransports() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, d := range h.devices {
		n += d.OpenTransports()
	}
	return n
}

func (h *harness) eventually(cond func() bool, msg string) {
	h.t.Helper()
	require.Eventually(h.t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

// barrier waits until every event pushed so far has been dispatched.
func (h *harness) barrier() {
	h.t.Helper()
	h.barriers++
	mark := fmt.Sprintf("barrier-%d", h.barriers)
	h.signal.PushEvent(core.EvError, core.ErrorEvent{Message: mark})
	h.eventually(func() bool { return strings.Contains(h.c.LastError(), mark) }, mark)
}
