package models

import "time"

// JournalEntry is a private note. Only its author and administrators read it.
type JournalEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index" json:"userId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

// Echo is a post on the public mood board.
type Echo struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Mood       string    `gorm:"type:text;not null;index:idx_mood_time" json:"mood"`
	AuthorID   string    `gorm:"type:text;not null" json:"authorId"`
	AuthorName string    `gorm:"type:text" json:"authorName"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Timestamp  time.Time `gorm:"not null;index:idx_mood_time" json:"timestamp"`
}

// TableName keeps the collection name used by the board.
func (Echo) TableName() string {
	return "community_echoes"
}
