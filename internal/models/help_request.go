package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a HelpRequest.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
)

// HelpRequest is a speaker's request for a listener.
// RoomID, ListenerID and ListenerName are written only by the pending -> accepted
// transition and are empty while the request is pending.
type HelpRequest struct {
	ID           string        `gorm:"primaryKey" json:"id"`
	SpeakerID    string        `gorm:"type:text;not null;index:idx_speaker_status" json:"speakerId"`
	SpeakerName  string        `gorm:"type:text" json:"speakerName"`
	Summary      string        `gorm:"type:text;not null" json:"summary"`
	Status       RequestStatus `gorm:"type:text;not null;index:idx_speaker_status;index" json:"status"`
	RoomID       string        `gorm:"type:text" json:"roomId,omitempty"`
	ListenerID   string        `gorm:"type:text" json:"listenerId,omitempty"`
	ListenerName string        `gorm:"type:text" json:"listenerName,omitempty"`
	AcceptedAt   *time.Time    `json:"acceptedAt,omitempty"`
	CreatedAt    time.Time     `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns a UUID when the caller did not provide an ID.
func (r *HelpRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// IsPending reports whether the request can still be accepted.
func (r *HelpRequest) IsPending() bool {
	return r.Status == StatusPending
}
