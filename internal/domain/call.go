package domain

import "time"

type CallID string

type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

func (k CallKind) Valid() bool { return k == CallAudio || k == CallVideo }

type CallStatus string

const (
	CallRinging   CallStatus = "ringing"
	CallAccepted  CallStatus = "accepted"
	CallRejected  CallStatus = "rejected"
	CallMissed    CallStatus = "missed"
	CallCancelled CallStatus = "cancelled"
	CallEnded     CallStatus = "ended"
)

// Call is a one-to-one call backed by a meeting once accepted.
type Call struct {
	ID         CallID     `json:"id"`
	MeetingID  MeetingID  `json:"meeting_id,omitempty"`
	CallerID   UserID     `json:"caller_id"`
	CallerName string     `json:"caller_name"`
	CalleeID   UserID     `json:"callee_id"`
	CalleeName string     `json:"callee_name"`
	Kind       CallKind   `json:"call_type"`
	Status     CallStatus `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}
