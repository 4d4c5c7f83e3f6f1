// Package journal stores private notes. Entries are kept verbatim: the
// crisis scan in package analysis runs over them later.
package journal

import (
	"context"
	"errors"
	"strings"

	"kindred/backend/internal/models"
	"kindred/backend/internal/storage"
)

var ErrEmptyEntry = errors.New("journal entry is empty")

type Service struct {
	Storage storage.Storage
}

func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// Add saves content for userID.
func (s *Service) Add(ctx context.Context, userID, content string) (*models.JournalEntry, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyEntry
	}
	e := &models.JournalEntry{UserID: userID, Content: content}
	if err := s.Storage.AddJournalEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the user's own entries, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	if userID == "" {
		return nil, errors.New("journal: user id required")
	}
	return s.Storage.ListJournalEntries(ctx, userID)
}
