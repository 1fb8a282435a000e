package core

//go:generate mockgen -destination=mocks/mock_api.go -package=mocks github.com/dkeye/meetclient/internal/core MeetingAPI,CallAPI,AdmissionAPI

import (
	"context"
	"encoding/json"

	"github.com/dkeye/meetclient/internal/domain"
)

type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// WebRTCConfig is what the backend advertises for a meeting's media router.
type WebRTCConfig struct {
	RTPCapabilities json.RawMessage `json:"rtpCapabilities"`
	ICEServers      []ICEServer     `json:"iceServers"`
	// Error is set when the router could not be prepared.
	Error string `json:"error,omitempty"`
}

type CreateMeetingRequest struct {
	Title       string                 `json:"title"`
	ScheduledAt string                 `json:"scheduled_at,omitempty"`
	Settings    domain.MeetingSettings `json:"settings"`
}

type MeetingAPI interface {
	Ping(ctx context.Context) error
	CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*domain.Meeting, error)
	GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error)
	GetMeetingByCode(ctx context.Context, code string) (*domain.Meeting, error)
	ListMyMeetings(ctx context.Context) ([]domain.Meeting, error)
	JoinMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error)
	StartMeeting(ctx context.Context, id domain.MeetingID) error
	EndMeeting(ctx context.Context, id domain.MeetingID) error
	CancelMeeting(ctx context.Context, id domain.MeetingID) error
	WebRTCConfig(ctx context.Context, id domain.MeetingID) (*WebRTCConfig, error)
}

type CallAPI interface {
	InitiateCall(ctx context.Context, callee domain.UserID, kind domain.CallKind) (*domain.Call, error)
	AnswerCall(ctx context.Context, id domain.CallID) (*domain.Call, error)
	RejectCall(ctx context.Context, id domain.CallID, reason string) error
	CancelCall(ctx context.Context, id domain.CallID) error
	EndCall(ctx context.Context, id domain.CallID) error
	ActiveCall(ctx context.Context) (*domain.Call, error)
	CallHistory(ctx context.Context, limit int) ([]domain.Call, error)
}

type AdmissionCheck struct {
	Required bool `json:"requires_admission"`
	// Admitted is set when the caller was already let in earlier.
	Admitted bool `json:"admitted"`
}

type AdmissionTicket struct {
	Status   domain.WaitingStatus `json:"status"`
	Position int                  `json:"position"`
}

type AdmissionAPI interface {
	CheckAdmission(ctx context.Context, id domain.MeetingID) (AdmissionCheck, error)
	RequestAdmission(ctx context.Context, id domain.MeetingID, displayName string) (AdmissionTicket, error)
	ListWaiting(ctx context.Context, id domain.MeetingID) ([]domain.WaitingRoomEntry, error)
	Admit(ctx context.Context, id domain.MeetingID, user domain.UserID) error
	RejectWaiting(ctx context.Context, id domain.MeetingID, user domain.UserID) error
}

type HostAPI interface {
	AddCoHost(ctx context.Context, id domain.MeetingID, user domain.UserID) error
	RemoveCoHost(ctx context.Context, id domain.MeetingID, user domain.UserID) error
	MuteAll(ctx context.Context, id domain.MeetingID) error
	ListParticipants(ctx context.Context, id domain.MeetingID) ([]domain.Participant, error)
	RemoveParticipant(ctx context.Context, id domain.MeetingID, user domain.UserID) error
}

type ContentAPI interface {
	ListRecordings(ctx context.Context, id domain.MeetingID) ([]domain.Recording, error)
	DeleteRecording(ctx context.Context, recordingID string) error
	ListChat(ctx context.Context, id domain.MeetingID) ([]domain.ChatMessage, error)
}

// Backend is the whole REST surface the client consumes.
type Backend interface {
	MeetingAPI
	CallAPI
	AdmissionAPI
	HostAPI
	ContentAPI
}
