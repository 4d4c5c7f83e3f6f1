package models

import "time"

// ChatRoom represents a 1-on-1 session opened when a listener accepts a request.
type ChatRoom struct {
	// RoomID is derived from both participants and the acceptance time.
	RoomID string `gorm:"primaryKey" json:"roomId"`
	// RequestID points back to the HelpRequest that opened the room.
	RequestID string `gorm:"type:text;uniqueIndex" json:"requestId"`
	// SpeakerID is the owner of the original request.
	SpeakerID string `gorm:"type:text;not null;index" json:"speakerId"`
	// ListenerID is the user who accepted the request.
	ListenerID string `gorm:"type:text;not null;index" json:"listenerId"`
	// IsActive is false once a participant has left.
	IsActive  bool       `json:"isActive"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// HasParticipant reports whether userID is one of the two room members.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return userID != "" && (r.SpeakerID == userID || r.ListenerID == userID)
}

// PartnerOf returns the other participant, or "" if userID is not in the room.
func (r *ChatRoom) PartnerOf(userID string) string {
	switch userID {
	case r.SpeakerID:
		return r.ListenerID
	case r.ListenerID:
		return r.SpeakerID
	}
	return ""
}
