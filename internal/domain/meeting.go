package domain

type MeetingID string

type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingActive    MeetingStatus = "active"
	MeetingEnded     MeetingStatus = "ended"
)

// MeetingSettings are the capability switches chosen by the meeting owner.
type MeetingSettings struct {
	AllowScreenShare bool `json:"allow_screen_share"`
	AllowChat        bool `json:"allow_chat"`
	MuteOnEntry      bool `json:"mute_on_entry"`
	WaitingRoom      bool `json:"waiting_room"`
	AutoAdmit        bool `json:"auto_admit"`
}

// Meeting is immutable once fetched, except for Status which follows backend events.
type Meeting struct {
	ID       MeetingID       `json:"id"`
	Title    string          `json:"title"`
	Code     string          `json:"code"`
	Status   MeetingStatus   `json:"status"`
	HostID   UserID          `json:"host_id"`
	Settings MeetingSettings `json:"settings"`
}

type Participant struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	IsHost      bool   `json:"is_host,omitempty"`
	IsCoHost    bool   `json:"is_co_host,omitempty"`
}

type Recording struct {
	ID        string    `json:"id"`
	MeetingID MeetingID `json:"meeting_id"`
	URL       string    `json:"url"`
	Duration  int       `json:"duration_seconds"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	MeetingID MeetingID `json:"meeting_id"`
	SenderID  UserID    `json:"sender_id"`
	Sender    string    `json:"sender_name"`
	Text      string    `json:"text"`
	SentAt    string    `json:"sent_at"`
}
