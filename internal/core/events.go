package core

import (
	"encoding/json"

	"github.com/dkeye/meetclient/internal/domain"
)

// Server -> client events.
const (
	EvIncomingCall       = "incoming-call"
	EvCallAccepted       = "call-accepted"
	EvCallRejected       = "call-rejected"
	EvCallMissed         = "call-missed"
	EvCallEnded          = "call-ended"
	EvCallCancelled      = "call-cancelled"
	EvAdmissionGranted   = "admission-granted"
	EvAdmissionRejected  = "admission-rejected"
	EvWaitingRoomUpdate  = "waiting-room-update"
	EvAdmissionRequested = "admission-requested"
	EvMeetingJoined      = "meeting-joined"
	EvTransportCreated   = "transport-created"
	EvTransportConnected = "transport-connected"
	EvProduced           = "produced"
	EvNewProducer        = "new-producer"
	EvConsumed           = "consumed"
	EvParticipantJoined  = "participant-joined"
	EvParticipantLeft    = "participant-left"
	EvProducerClosed     = "producer-closed"
	EvConfigUpdated      = "meeting:config-updated"
	EvError              = "error"
)

// Client -> server events.
const (
	EvJoinMeeting     = "join-meeting"
	EvLeaveMeeting    = "leave-meeting"
	EvCreateTransport = "create-transport"
	EvConnectTrans    = "connect-transport"
	EvProduce         = "produce"
	EvConsume         = "consume"
	EvResumeConsumer  = "resume-consumer"
	EvCloseProducer   = "close-producer"
)

type CallEvent struct {
	CallID    domain.CallID    `json:"callId"`
	MeetingID domain.MeetingID `json:"meetingId,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

type AdmissionEvent struct {
	MeetingID domain.MeetingID `json:"meetingId"`
	Reason    string           `json:"reason,omitempty"`
}

type AdmissionRequestedEvent struct {
	MeetingID domain.MeetingID        `json:"meetingId"`
	Entry     domain.WaitingRoomEntry `json:"entry"`
}

type JoinMeetingRequest struct {
	MeetingID       domain.MeetingID `json:"meetingId"`
	RTPCapabilities json.RawMessage  `json:"rtpCapabilities,omitempty"`
}

type MeetingJoined struct {
	MeetingID    domain.MeetingID            `json:"meetingId"`
	Profile      *domain.OptimizationProfile `json:"optimizationSettings,omitempty"`
	Producers    []ProducerEvent             `json:"existingProducers"`
	Participants []domain.Participant        `json:"participants,omitempty"`
	Error        string                      `json:"error,omitempty"`
}

type LeaveMeetingRequest struct {
	MeetingID domain.MeetingID `json:"meetingId"`
}

type CreateTransportRequest struct {
	Direction domain.Direction `json:"direction"`
}

type TransportCreated struct {
	TransportParams
	Direction domain.Direction `json:"direction"`
	Error     string           `json:"error,omitempty"`
}

type ConnectTransportRequest struct {
	TransportID    domain.TransportID `json:"transportId"`
	DTLSParameters json.RawMessage    `json:"dtlsParameters"`
}

type TransportConnected struct {
	TransportID domain.TransportID `json:"transportId"`
	Error       string             `json:"error,omitempty"`
}

type ProduceRequest struct {
	TransportID   domain.TransportID   `json:"transportId"`
	Kind          domain.MediaKind     `json:"kind"`
	RTPParameters json.RawMessage      `json:"rtpParameters"`
	RequestID     string               `json:"requestId"`
	Discriminator domain.Discriminator `json:"discriminator,omitempty"`
}

type Produced struct {
	RequestID  string            `json:"requestId"`
	ProducerID domain.ProducerID `json:"id"`
	Error      string            `json:"error,omitempty"`
}

type ConsumeRequest struct {
	ProducerID      domain.ProducerID    `json:"producerId"`
	Kind            domain.MediaKind     `json:"kind"`
	RTPCapabilities json.RawMessage      `json:"rtpCapabilities"`
	Discriminator   domain.Discriminator `json:"discriminator,omitempty"`
}

type Consumed struct {
	ConsumeParams
	Discriminator domain.Discriminator `json:"discriminator,omitempty"`
	Error         string               `json:"error,omitempty"`
}

type ResumeConsumerRequest struct {
	ConsumerID domain.ConsumerID `json:"consumerId"`
}

type CloseProducerRequest struct {
	ProducerID    domain.ProducerID    `json:"producerId"`
	Kind          domain.MediaKind     `json:"kind"`
	Discriminator domain.Discriminator `json:"discriminator,omitempty"`
}

type ProducerEvent struct {
	ParticipantID domain.UserID        `json:"userId"`
	ProducerID    domain.ProducerID    `json:"producerId"`
	Kind          domain.MediaKind     `json:"kind"`
	Discriminator domain.Discriminator `json:"discriminator,omitempty"`
}

func (e ProducerEvent) Ref() domain.RemoteProducerRef {
	return domain.RemoteProducerRef{
		ParticipantID: e.ParticipantID,
		ProducerID:    e.ProducerID,
		Kind:          e.Kind,
		Discriminator: e.Discriminator,
	}
}

type ParticipantEvent struct {
	ParticipantID domain.UserID `json:"userId"`
	DisplayName   string        `json:"displayName,omitempty"`
}

type ConfigUpdated struct {
	Profile domain.OptimizationProfile `json:"optimizationSettings"`
	Reason  string                     `json:"reason"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
