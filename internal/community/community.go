// Package community is the public mood board ("echoes").
package community

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kindred/backend/internal/chathub"
	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/storage"
)

var (
	ErrUnknownMood = errors.New("unknown mood")
	ErrEmptyEcho   = errors.New("echo is empty")
)

// Board posts and streams echoes per mood. Posts go through the same
// chat policy as room messages, including the toxicity suspension.
type Board struct {
	Storage    storage.Storage
	Hub        *chathub.Hub
	Notifier   chathub.Notifier
	Guard      *guard.Guard
	Moderation *moderation.Service
	Limit      int
}

func NewBoard(s storage.Storage, hub *chathub.Hub, notifier chathub.Notifier, g *guard.Guard, mod *moderation.Service) *Board {
	if notifier == nil {
		notifier = hub
	}
	return &Board{
		Storage:    s,
		Hub:        hub,
		Notifier:   notifier,
		Guard:      g,
		Moderation: mod,
		Limit:      config.EchoPageSize,
	}
}

// ValidMood reports whether mood is one of config.Moods.
func ValidMood(mood string) bool {
	for _, m := range config.Moods {
		if m == mood {
			return true
		}
	}
	return false
}

func (b *Board) Post(ctx context.Context, mood string, author models.Identity, content string) (*models.Echo, error) {
	if !ValidMood(mood) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMood, mood)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyEcho
	}
	if err := b.Moderation.CheckSuspension(ctx, author); err != nil {
		return nil, err
	}

	if err := b.Moderation.ScreenChat(ctx, b.Guard, author, content, "toxicity on the "+mood+" board"); err != nil {
		return nil, err
	}

	name := author.DisplayName
	if name == "" {
		name = config.DefaultDisplayName
	}
	echo := &models.Echo{Mood: mood, AuthorID: author.UserID, AuthorName: name, Content: content}
	if err := b.Storage.AddEcho(ctx, echo); err != nil {
		return nil, err
	}
	b.Notifier.Notify(chathub.EchoTopic(mood))
	return echo, nil
}

// Latest returns the newest echoes for mood.
func (b *Board) Latest(ctx context.Context, mood string) ([]models.Echo, error) {
	if !ValidMood(mood) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMood, mood)
	}
	return b.Storage.ListEchoes(ctx, mood, b.Limit)
}

func (b *Board) Watch(ctx context.Context, mood string) (*chathub.Subscription[[]models.Echo], error) {
	if !ValidMood(mood) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMood, mood)
	}
	return chathub.Watch(ctx, b.Hub, chathub.EchoTopic(mood), func(ctx context.Context) ([]models.Echo, error) {
		return b.Storage.ListEchoes(ctx, mood, b.Limit)
	}), nil
}
