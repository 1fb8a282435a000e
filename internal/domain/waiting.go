package domain

import "time"

type WaitingStatus string

const (
	Waiting         WaitingStatus = "waiting"
	WaitingAdmitted WaitingStatus = "admitted"
	WaitingRejected WaitingStatus = "rejected"
)

type WaitingRoomEntry struct {
	UserID      UserID        `json:"user_id"`
	DisplayName string        `json:"display_name"`
	RequestedAt time.Time     `json:"requested_at"`
	Status      WaitingStatus `json:"status"`
}

// WaitingRoom is keyed by participant identity, so an identity appears at most once.
type WaitingRoom map[UserID]WaitingRoomEntry

// NewWaitingRoom folds a list into a mapping; the latest request for an identity wins.
func NewWaitingRoom(entries []WaitingRoomEntry) WaitingRoom {
	wr := make(WaitingRoom, len(entries))
	for _, e := range entries {
		if prev, ok := wr[e.UserID]; ok && prev.RequestedAt.After(e.RequestedAt) {
			continue
		}
		wr[e.UserID] = e
	}
	return wr
}
