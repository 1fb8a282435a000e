package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/meetclient/internal/app/admission"
	"github.com/dkeye/meetclient/internal/app/media"
	"github.com/dkeye/meetclient/internal/app/orch"
	"github.com/dkeye/meetclient/internal/config"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/dkeye/meetclient/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCoord struct {
	calls     []string
	err       error
	published map[domain.Slot]domain.ProducerID
	limit     int
}

func (f *fakeCoord) record(op string) error {
	f.calls = append(f.calls, op)
	return f.err
}

func (f *fakeCoord) Snapshot() orch.Snapshot {
	return orch.Snapshot{Status: orch.StatusConnected, Published: f.published}
}

func (f *fakeCoord) InitiateCall(_ context.Context, callee domain.UserID, kind domain.CallKind) (*domain.Call, error) {
	if err := f.record("initiate"); err != nil {
		return nil, err
	}
	return &domain.Call{ID: "c1", CalleeID: callee, Kind: kind}, nil
}

func (f *fakeCoord) AnswerCall(context.Context) (*domain.Call, error) {
	if err := f.record("answer"); err != nil {
		return nil, err
	}
	return &domain.Call{ID: "c1"}, nil
}

func (f *fakeCoord) RejectCall(_ context.Context, reason string) error {
	return f.record("reject:" + reason)
}
func (f *fakeCoord) CancelCall(context.Context) error { return f.record("cancel") }
func (f *fakeCoord) EndCall(context.Context) error    { return f.record("end") }

func (f *fakeCoord) CallHistory(_ context.Context, limit int) ([]domain.Call, error) {
	f.limit = limit
	return []domain.Call{}, f.record("history")
}

func (f *fakeCoord) JoinMeeting(_ context.Context, id domain.MeetingID) (admission.Snapshot, error) {
	return admission.Snapshot{MeetingID: id}, f.record("join:" + string(id))
}
func (f *fakeCoord) LeaveMeeting() error { return f.record("leave") }

func (f *fakeCoord) Publish(_ context.Context, slot domain.Slot) (domain.ProducerID, error) {
	if !slot.Valid() {
		return "", fmt.Errorf("%w: %q", media.ErrInvalidSlot, slot)
	}
	return "p-" + domain.ProducerID(slot), f.record("publish:" + string(slot))
}
func (f *fakeCoord) Unpublish(slot domain.Slot) error { return f.record("unpublish:" + string(slot)) }

func (f *fakeCoord) ListWaiting(_ context.Context, id domain.MeetingID) (domain.WaitingRoom, error) {
	return domain.NewWaitingRoom([]domain.WaitingRoomEntry{{UserID: "u9", DisplayName: "Nine"}}), f.record("list-waiting")
}
func (f *fakeCoord) WaitingRoom(domain.MeetingID) domain.WaitingRoom { return domain.WaitingRoom{} }
func (f *fakeCoord) Admit(_ context.Context, _ domain.MeetingID, u domain.UserID) error {
	return f.record("admit:" + string(u))
}
func (f *fakeCoord) RejectWaiting(_ context.Context, _ domain.MeetingID, u domain.UserID) error {
	return f.record("reject-waiting:" + string(u))
}

type fakeHost struct {
	core.HostAPI
	muted []domain.MeetingID
}

func (h *fakeHost) MuteAll(_ context.Context, id domain.MeetingID) error {
	h.muted = append(h.muted, id)
	return nil
}

func newRouter(t *testing.T, secret string) (*gin.Engine, *fakeCoord, *fakeHost) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	coord := &fakeCoord{}
	host := &fakeHost{}
	r := SetupRouter(&config.Config{Mode: "test", Secret: secret}, coord, host, metrics.New())
	return r, coord, host
}

func do(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusOpenWithoutSecret(t *testing.T) {
	r, _, _ := newRouter(t, "")
	w := do(r, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestHeader))

	var snap orch.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, orch.StatusConnected, snap.Status)
}

func TestSecretRequiresLogin(t *testing.T) {
	r, _, _ := newRouter(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/session", loginRequest{Secret: "nope"}).Code)

	login := do(r, http.MethodPost, "/api/session", loginRequest{Secret: "s3cret"})
	require.Equal(t, http.StatusNoContent, login.Code)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/status", nil, cookies...).Code)
}

func TestCallLifecycleRoutes(t *testing.T) {
	r, coord, _ := newRouter(t, "")

	w := do(r, http.MethodPost, "/api/calls", callRequest{CalleeID: "u2", Kind: domain.CallVideo})
	require.Equal(t, http.StatusCreated, w.Code)
	var call domain.Call
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &call))
	assert.Equal(t, domain.CallVideo, call.Kind)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/calls/answer", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/calls/reject", rejectRequest{Reason: "later"}).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/calls/cancel", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/calls/end", nil).Code)
	assert.Equal(t, []string{"initiate", "answer", "reject:later", "cancel", "end"}, coord.calls)
}

func TestInitiateCallValidation(t *testing.T) {
	r, coord, _ := newRouter(t, "")
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/calls", callRequest{}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/calls", callRequest{CalleeID: "u2", Kind: "fax"}).Code)
	assert.Empty(t, coord.calls)
}

func TestInitiateCallRateLimited(t *testing.T) {
	r, _, _ := newRouter(t, "")
	for range 3 {
		require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/calls", callRequest{CalleeID: "u2"}).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/calls", callRequest{CalleeID: "u2"}).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/calls", callRequest{CalleeID: "u3"}).Code)
}

func TestErrorMapping(t *testing.T) {
	r, coord, _ := newRouter(t, "")

	coord.err = fmt.Errorf("answer: %w", core.ErrInvalidTransition)
	w := do(r, http.MethodPost, "/api/calls/answer", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "invalid state transition")

	coord.err = fmt.Errorf("publish: %w", core.ErrDevice)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/api/publish/camera", nil).Code)

	coord.err = nil
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/publish/tv", nil).Code)

	coord.err = fmt.Errorf("connect: %w", core.ErrNegotiationTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, do(r, http.MethodPost, "/api/meetings/m1/join", nil).Code)

	coord.err = fmt.Errorf("boom")
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/api/meetings/leave", nil).Code)
}

func TestMeetingAndMediaRoutes(t *testing.T) {
	r, coord, host := newRouter(t, "")

	w := do(r, http.MethodPost, "/api/meetings/m1/join", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/publish/microphone", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/publish/microphone", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/meetings/m1/waiting-room/u9/admit", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/meetings/m1/waiting-room/u8/reject", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/meetings/leave", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/meetings/m1/mute-all", nil).Code)

	assert.Equal(t, []string{
		"join:m1", "publish:microphone", "unpublish:microphone", "admit:u9", "reject-waiting:u8", "leave",
	}, coord.calls)
	assert.Equal(t, []domain.MeetingID{"m1"}, host.muted)
}

func TestWaitingRoomRefresh(t *testing.T) {
	r, coord, _ := newRouter(t, "")

	w := do(r, http.MethodGet, "/api/meetings/m1/waiting-room", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Empty(t, coord.calls)

	w = do(r, http.MethodGet, "/api/meetings/m1/waiting-room?refresh=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u9")
	assert.Equal(t, []string{"list-waiting"}, coord.calls)
}

func TestCallHistoryLimit(t *testing.T) {
	r, coord, _ := newRouter(t, "")
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/calls/history", nil).Code)
	assert.Equal(t, historyDefault, coord.limit)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/calls/history?limit=5000", nil).Code)
	assert.Equal(t, historyMax, coord.limit)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/calls/history?limit=7", nil).Code)
	assert.Equal(t, 7, coord.limit)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := newRouter(t, "")
	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "meetclient_")
}

func TestCallRateLimiterWindow(t *testing.T) {
	rl := NewCallRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("u1"))
}

func TestCallRateLimiterForgetsIdleCallees(t *testing.T) {
	rl := NewCallRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	require.True(t, rl.Allow("u1"))
	require.True(t, rl.Allow("u2"))
	assert.Len(t, rl.attempts, 2)

	now = now.Add(2 * time.Minute)
	require.True(t, rl.Allow("u3"))
	assert.NotContains(t, rl.attempts, domain.UserID("u1"))
	assert.NotContains(t, rl.attempts, domain.UserID("u2"))
	assert.Len(t, rl.attempts, 1)
}

func TestCallRateLimiterZeroLimitKeepsNothing(t *testing.T) {
	rl := NewCallRateLimiter(0, time.Minute)
	assert.False(t, rl.Allow("u1"))
	assert.Empty(t, rl.attempts)
}
