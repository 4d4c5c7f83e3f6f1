// Package analysis scans journal entries for crisis vocabulary after the fact.
// Chat messages that hit the crisis policy are never stored, so journals are
// the only place an administrator can see these signals.
package analysis

import (
	"time"
	"unicode/utf8"

	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
)

const excerptRunes = 80

// Flag marks a journal entry that contains a crisis term.
type Flag struct {
	EntryID   uint      `json:"entryId"`
	UserID    string    `json:"userId"`
	Term      string    `json:"term"`
	Excerpt   string    `json:"excerpt"`
	Timestamp time.Time `json:"timestamp"`
}

type Scanner struct {
	Guard *guard.Guard
}

func NewScanner(g *guard.Guard) *Scanner {
	return &Scanner{Guard: g}
}

// Scan returns one flag per matching entry, in input order.
func (s *Scanner) Scan(entries []models.JournalEntry) []Flag {
	var flags []Flag
	for _, e := range entries {
		term, ok := s.Guard.CrisisTerm(e.Content)
		if !ok {
			continue
		}
		flags = append(flags, Flag{
			EntryID:   e.ID,
			UserID:    e.UserID,
			Term:      term,
			Excerpt:   Excerpt(e.Content),
			Timestamp: e.Timestamp,
		})
	}
	return flags
}

// Excerpt shortens content for alerts and listings.
func Excerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptRunes {
		return content
	}
	r := []rune(content)
	return string(r[:excerptRunes]) + "…"
}
