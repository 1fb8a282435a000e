package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/core/mocks"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const meeting = domain.MeetingID("m1")

func newGate(t *testing.T) (*Gate, *mocks.MockAdmissionAPI) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAdmissionAPI(ctrl)
	return NewGate(api, "me", 50*time.Millisecond), api
}

func TestCheckRequiredNotRequired(t *testing.T) {
	g, api := newGate(t)
	api.EXPECT().CheckAdmission(gomock.Any(), meeting).Return(core.AdmissionCheck{Required: false}, nil)

	required, err := g.CheckRequired(context.Background(), meeting)
	require.NoError(t, err)
	assert.False(t, required)
	assert.Equal(t, StateNotRequired, g.State())
	assert.True(t, g.State().CanJoin())
}

func TestCheckRequiredFailsClosedOnTimeout(t *testing.T) {
	g, api := newGate(t)
	api.EXPECT().CheckAdmission(gomock.Any(), meeting).DoAndReturn(
		func(ctx context.Context, _ domain.MeetingID) (core.AdmissionCheck, error) {
			<-ctx.Done()
			return core.AdmissionCheck{}, ctx.Err()
		})

	required, err := g.CheckRequired(context.Background(), meeting)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, required)
	assert.Equal(t, StateRequired, g.State())
	assert.False(t, g.State().CanJoin())
}

func requireWaiting(t *testing.T, g *Gate, api *mocks.MockAdmissionAPI) {
	t.Helper()
	api.EXPECT().CheckAdmission(gomock.Any(), meeting).Return(core.AdmissionCheck{Required: true}, nil)
	api.EXPECT().RequestAdmission(gomock.Any(), meeting, "Ann").Return(core.AdmissionTicket{Status: domain.Waiting, Position: 1}, nil)

	required, err := g.CheckRequired(context.Background(), meeting)
	require.NoError(t, err)
	require.True(t, required)

	snap, err := g.RequestAdmission(context.Background(), meeting, "Ann")
	require.NoError(t, err)
	require.Equal(t, StateWaiting, snap.State)
	require.Equal(t, 1, snap.Position)
}

func TestHostNeverResponds(t *testing.T) {
	g, api := newGate(t)
	requireWaiting(t, g, api)

	for range 3 {
		g.OnWaitingRoomUpdate(WaitingRoomUpdate{MeetingID: meeting})
	}
	snap := g.Snapshot()
	assert.Equal(t, StateWaiting, snap.State)
	assert.Zero(t, snap.Position)
}

func TestDuplicateRequestIsIdempotent(t *testing.T) {
	g, api := newGate(t)
	requireWaiting(t, g, api)

	// no second backend call is expected
	snap, err := g.RequestAdmission(context.Background(), meeting, "Ann")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, snap.State)
	assert.Equal(t, 1, snap.Position)
}

func TestRequestOnlyFromRequired(t *testing.T) {
	g, _ := newGate(t)
	_, err := g.RequestAdmission(context.Background(), meeting, "Ann")
	require.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestRequestFailureReturnsToRequired(t *testing.T) {
	g, api := newGate(t)
	api.EXPECT().CheckAdmission(gomock.Any(), meeting).Return(core.AdmissionCheck{Required: true}, nil)
	api.EXPECT().RequestAdmission(gomock.Any(), meeting, "Ann").Return(core.AdmissionTicket{}, errors.New("503"))

	_, err := g.CheckRequired(context.Background(), meeting)
	require.NoError(t, err)
	_, err = g.RequestAdmission(context.Background(), meeting, "Ann")
	require.Error(t, err)
	assert.Equal(t, StateRequired, g.State())
}

func TestGrantedAndRejectedPushes(t *testing.T) {
	g, api := newGate(t)
	requireWaiting(t, g, api)

	assert.False(t, g.OnGranted("other"))
	assert.True(t, g.OnGranted(meeting))
	assert.False(t, g.OnGranted(meeting))
	assert.Equal(t, StateAdmitted, g.State())

	assert.True(t, g.OnRejected(meeting))
	assert.False(t, g.OnRejected(meeting))
	assert.Equal(t, StateRejected, g.State())
}

func TestPositionFromPush(t *testing.T) {
	g, api := newGate(t)
	requireWaiting(t, g, api)

	pos := 3
	g.OnWaitingRoomUpdate(WaitingRoomUpdate{
		MeetingID: meeting,
		Entries:   []domain.WaitingRoomEntry{{UserID: "me", Status: domain.Waiting}},
		Position:  &pos,
	})
	assert.Equal(t, 3, g.Snapshot().Position)
}

func TestHostMappingDeduplicates(t *testing.T) {
	g, api := newGate(t)
	now := time.Now()
	g.OnAdmissionRequested(meeting, domain.WaitingRoomEntry{UserID: "u1", DisplayName: "Ann", RequestedAt: now})
	g.OnAdmissionRequested(meeting, domain.WaitingRoomEntry{UserID: "u1", DisplayName: "Ann", RequestedAt: now})
	wr := g.WaitingRoom(meeting)
	require.Len(t, wr, 1)
	assert.Equal(t, domain.Waiting, wr["u1"].Status)

	api.EXPECT().Admit(gomock.Any(), meeting, domain.UserID("u1")).Return(nil)
	require.NoError(t, g.Admit(context.Background(), meeting, "u1"))
	// the mapping only changes once the backend says so
	assert.Len(t, g.WaitingRoom(meeting), 1)

	api.EXPECT().ListWaiting(gomock.Any(), meeting).Return(nil, nil)
	wr, err := g.ListWaiting(context.Background(), meeting)
	require.NoError(t, err)
	assert.Empty(t, wr)
}

func TestRejectWaitingSurfacesError(t *testing.T) {
	g, api := newGate(t)
	api.EXPECT().RejectWaiting(gomock.Any(), meeting, domain.UserID("u2")).Return(errors.New("forbidden"))
	require.Error(t, g.Reject(context.Background(), meeting, "u2"))
}
