package models

import "time"

const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"

	// SystemSenderID marks messages authored by the service, not a participant.
	SystemSenderID = "system"
)

// ChatMessage is one entry in a room's append-only log.
// The ID is a database sequence and breaks ties between equal timestamps,
// so (Timestamp, ID) is a strict total order within a room.
type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     string    `gorm:"type:text;not null;index:idx_room_msg" json:"roomId"`
	SenderID   string    `gorm:"type:text;not null" json:"senderId"`
	SenderName string    `gorm:"type:text" json:"senderName"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Type       string    `gorm:"type:text;not null" json:"type"`
	Timestamp  time.Time `gorm:"not null;index:idx_room_msg" json:"timestamp"`
}
