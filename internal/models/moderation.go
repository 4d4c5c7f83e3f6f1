package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportResolved ReportStatus = "resolved"

	ReportTypeHarassment = "harassment"
)

// Report is a participant's flag on a chat room, resolved by an administrator.
type Report struct {
	ID         string       `gorm:"primaryKey" json:"id"`
	RoomID     string       `gorm:"type:text;not null;index" json:"roomId"`
	ReporterID string       `gorm:"type:text;not null" json:"reporterId"`
	TargetID   string       `gorm:"type:text" json:"targetId"`
	Type       string       `gorm:"type:text;not null" json:"type"`
	Status     ReportStatus `gorm:"type:text;not null" json:"status"`
	// LoggedMessages keeps the room tail at report time, oldest first.
	LoggedMessages pq.StringArray `gorm:"type:text[]" json:"loggedMessages"`
	ReportedAt     time.Time      `json:"reportedAt"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// Ban is the administrator-visible record of a suspension.
type Ban struct {
	ClientID  string    `gorm:"primaryKey" json:"clientId"`
	UserID    string    `gorm:"type:text;index" json:"userId"`
	Reason    string    `gorm:"type:text" json:"reason"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Active reports whether the ban still blocks access at now.
func (b *Ban) Active(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}
