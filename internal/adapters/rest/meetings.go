package rest

import (
	"context"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
)

var _ core.Backend = (*Client)(nil)

func meetingPath(id domain.MeetingID) string { return "/api/meetings/" + seg(string(id)) }

func (c *Client) CreateMeeting(ctx context.Context, req core.CreateMeetingRequest) (*domain.Meeting, error) {
	var m domain.Meeting
	if err := c.post(ctx, "/api/meetings", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	var m domain.Meeting
	if err := c.get(ctx, meetingPath(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GetMeetingByCode(ctx context.Context, code string) (*domain.Meeting, error) {
	var m domain.Meeting
	if err := c.get(ctx, "/api/meetings/code/"+seg(code), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) ListMyMeetings(ctx context.Context) ([]domain.Meeting, error) {
	var out []domain.Meeting
	if err := c.get(ctx, "/api/meetings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) JoinMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	var m domain.Meeting
	if err := c.post(ctx, meetingPath(id)+"/join", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) StartMeeting(ctx context.Context, id domain.MeetingID) error {
	return c.post(ctx, meetingPath(id)+"/start", nil, nil)
}

func (c *Client) EndMeeting(ctx context.Context, id domain.MeetingID) error {
	return c.post(ctx, meetingPath(id)+"/end", nil, nil)
}

func (c *Client) CancelMeeting(ctx context.Context, id domain.MeetingID) error {
	return c.post(ctx, meetingPath(id)+"/cancel", nil, nil)
}

func (c *Client) WebRTCConfig(ctx context.Context, id domain.MeetingID) (*core.WebRTCConfig, error) {
	var cfg core.WebRTCConfig
	if err := c.get(ctx, meetingPath(id)+"/webrtc-config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) CheckAdmission(ctx context.Context, id domain.MeetingID) (core.AdmissionCheck, error) {
	var out core.AdmissionCheck
	err := c.get(ctx, meetingPath(id)+"/admission", &out)
	return out, err
}

func (c *Client) RequestAdmission(ctx context.Context, id domain.MeetingID, displayName string) (core.AdmissionTicket, error) {
	var out core.AdmissionTicket
	err := c.post(ctx, meetingPath(id)+"/admission", map[string]string{"display_name": displayName}, &out)
	return out, err
}

func (c *Client) ListWaiting(ctx context.Context, id domain.MeetingID) ([]domain.WaitingRoomEntry, error) {
	var out []domain.WaitingRoomEntry
	if err := c.get(ctx, meetingPath(id)+"/waiting-room", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Admit(ctx context.Context, id domain.MeetingID, user domain.UserID) error {
	return c.post(ctx, meetingPath(id)+"/waiting-room/"+seg(string(user))+"/admit", nil, nil)
}

func (c *Client) RejectWaiting(ctx context.Context, id domain.MeetingID, user domain.UserID) error {
	return c.post(ctx, meetingPath(id)+"/waiting-room/"+seg(string(user))+"/reject", nil, nil)
}

func (c *Client) AddCoHost(ctx context.Context, id domain.MeetingID, user domain.UserID) error {
	return c.post(ctx, meetingPath(id)+"/co-hosts", map[string]string{"user_id": string(user)}, nil)
}

func (c *Client) RemoveCoHost(ctx context.Context, id domain.MeetingID, user domain.UserID) error {
	return c.delete(ctx, meetingPath(id)+"/co-hosts/"+seg(string(user)))
}

func (c *Client) MuteAll(ctx context.Context, id domain.MeetingID) error {
	return c.post(ctx, meetingPath(id)+"/mute-all", nil, nil)
}

func (c *Client) ListParticipants(ctx context.Context, id domain.MeetingID) ([]domain.Participant, error) {
	var out []domain.Participant
	if err := c.get(ctx, meetingPath(id)+"/participants", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RemoveParticipant(ctx context.Context, id domain.MeetingID, user domain.UserID) error {
	return c.delete(ctx, meetingPath(id)+"/participants/"+seg(string(user)))
}

func (c *Client) ListRecordings(ctx context.Context, id domain.MeetingID) ([]domain.Recording, error) {
	var out []domain.Recording
	if err := c.get(ctx, meetingPath(id)+"/recordings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteRecording(ctx context.Context, recordingID string) error {
	return c.delete(ctx, "/api/recordings/"+seg(recordingID))
}

func (c *Client) ListChat(ctx context.Context, id domain.MeetingID) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	if err := c.get(ctx, meetingPath(id)+"/chat", &out); err != nil {
		return nil, err
	}
	return out, nil
}
