package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered account. CredentialKey is the sanitized handle plus the
// synthetic credential domain; it is never a deliverable email address.
type User struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	CredentialKey string    `gorm:"uniqueIndex;not null" json:"-"`
	PasswordHash  string    `gorm:"not null" json:"-"`
	DisplayName   string    `json:"displayName"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BeforeCreate generates a UUID for the user if the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
