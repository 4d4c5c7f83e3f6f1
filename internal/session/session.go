// Package session is the per-room message log.
package session

import (
	"context"
	"errors"
	"log"
	"strings"

	"kindred/backend/internal/chathub"
	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/storage"
)

var (
	ErrNotParticipant = moderation.ErrNotParticipant
	ErrRoomClosed     = errors.New("room is closed")
	ErrEmptyMessage   = errors.New("message is empty")
)

// Session is the ChatSession service. Every post passes the chat guard
// before it reaches storage.
type Session struct {
	Storage    storage.Storage
	Hub        *chathub.Hub
	Notifier   chathub.Notifier
	Guard      *guard.Guard
	Moderation *moderation.Service
}

func New(s storage.Storage, hub *chathub.Hub, notifier chathub.Notifier, g *guard.Guard, mod *moderation.Service) *Session {
	if notifier == nil {
		notifier = hub
	}
	return &Session{Storage: s, Hub: hub, Notifier: notifier, Guard: g, Moderation: mod}
}

// Post appends content to the room as sender. A toxic message suspends the
// sender for config.ToxicitySuspension and is discarded. A crisis hit comes
// back as *moderation.CrisisError; other blocks as *guard.BlockedError.
func (s *Session) Post(ctx context.Context, roomID string, sender models.Identity, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.Moderation.CheckSuspension(ctx, sender); err != nil {
		return nil, err
	}

	room, err := s.participantRoom(ctx, roomID, sender.UserID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomClosed
	}

	if err := s.Moderation.ScreenChat(ctx, s.Guard, sender, content, "toxicity in room "+roomID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		RoomID:     roomID,
		SenderID:   sender.UserID,
		SenderName: sender.DisplayName,
		Content:    content,
		Type:       models.MessageTypeText,
	}
	if err := s.Storage.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.Notifier.Notify(chathub.RoomTopic(roomID))
	return msg, nil
}

// Messages returns the room log, oldest first.
func (s *Session) Messages(ctx context.Context, roomID, userID string) ([]models.ChatMessage, error) {
	if _, err := s.participantRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.Storage.ListMessages(ctx, roomID)
}

// Watch streams the room log to a participant.
func (s *Session) Watch(ctx context.Context, roomID, userID string) (*chathub.Subscription[[]models.ChatMessage], error) {
	if _, err := s.participantRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return chathub.Watch(ctx, s.Hub, chathub.RoomTopic(roomID), func(ctx context.Context) ([]models.ChatMessage, error) {
		return s.Storage.ListMessages(ctx, roomID)
	}), nil
}

// Leave ends the session for both participants. Leaving a closed room is a
// no-op.
func (s *Session) Leave(ctx context.Context, roomID string, who models.Identity) error {
	room, err := s.participantRoom(ctx, roomID, who.UserID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return nil
	}

	name := who.DisplayName
	if name == "" {
		name = config.DefaultDisplayName
	}
	notice := &models.ChatMessage{
		RoomID:   roomID,
		SenderID: models.SystemSenderID,
		Content:  name + " has left the conversation.",
		Type:     models.MessageTypeSystem,
	}
	if err := s.Storage.AppendMessage(ctx, notice); err != nil {
		log.Printf("WARNING: Failed to post leave notice in room %s: %v", roomID, err)
	}
	if err := s.Storage.CloseRoom(ctx, roomID); err != nil {
		return err
	}
	s.Notifier.Notify(chathub.RoomTopic(roomID))
	log.Printf("INFO: Room %s closed by %s", roomID, who.UserID)
	return nil
}

func (s *Session) participantRoom(ctx context.Context, roomID, userID string) (*models.ChatRoom, error) {
	room, err := s.Storage.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}
