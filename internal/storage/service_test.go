package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kindred/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestService opens an in-memory SQLite database behind the gorm
// Service. A single connection keeps every query on the same database.
func setupTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.HelpRequest{}, &models.ChatRoom{}, &models.ChatMessage{}, &models.Ban{}))
	return NewStorageService(db)
}

func newServicePending(t *testing.T, s *Service, speaker string) *models.HelpRequest {
	t.Helper()
	req := &models.HelpRequest{SpeakerID: speaker, SpeakerName: "S", Summary: "need someone"}
	require.NoError(t, s.CreateRequest(context.Background(), req))
	return req
}

func TestService_AcceptRequest(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := setupTestService(t)
	req := newServicePending(t, s, "speaker")

	// Act
	got, err := s.AcceptRequest(ctx, AcceptParams{
		RequestID:    req.ID,
		RoomID:       "room-1",
		ListenerID:   "listener",
		ListenerName: "L",
		Greeting:     "hello",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, "room-1", got.RoomID)
	assert.Equal(t, "listener", got.ListenerID)
	require.NotNil(t, got.AcceptedAt)

	room, err := s.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, room.IsActive)
	assert.Equal(t, "speaker", room.SpeakerID)

	msgs, err := s.ListMessages(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageTypeSystem, msgs[0].Type)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestService_AcceptRequestErrors(t *testing.T) {
	ctx := context.Background()
	s := setupTestService(t)

	_, err := s.AcceptRequest(ctx, AcceptParams{RequestID: "missing", RoomID: "r"})
	assert.ErrorIs(t, err, ErrNotFound)

	req := newServicePending(t, s, "speaker")
	_, err = s.AcceptRequest(ctx, AcceptParams{RequestID: req.ID, RoomID: "r1", ListenerID: "l1"})
	require.NoError(t, err)

	_, err = s.AcceptRequest(ctx, AcceptParams{RequestID: req.ID, RoomID: "r2", ListenerID: "l2"})
	assert.ErrorIs(t, err, ErrConflict)

	// the losing transaction left nothing behind
	_, err = s.GetRoom(ctx, "r2")
	assert.ErrorIs(t, err, ErrNotFound)
	msgs, err := s.ListMessages(ctx, "r2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestService_ConcurrentAcceptSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := setupTestService(t)
	req := newServicePending(t, s, "speaker")

	const n = 8
	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AcceptRequest(ctx, AcceptParams{
				RequestID:  req.ID,
				RoomID:     fmt.Sprintf("room-%d", i),
				ListenerID: fmt.Sprintf("listener-%d", i),
			})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, n-1, conflicts)

	rooms, err := s.ListRooms(ctx, false)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestService_MessagesInAppendOrder(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := setupTestService(t)
	req := newServicePending(t, s, "speaker")
	_, err := s.AcceptRequest(ctx, AcceptParams{RequestID: req.ID, RoomID: "r", ListenerID: "l", Greeting: "hi"})
	require.NoError(t, err)

	// Act
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendMessage(ctx, &models.ChatMessage{RoomID: "r", SenderID: "u", Content: fmt.Sprint(i)}))
	}

	// Assert
	msgs, err := s.ListMessages(ctx, "r")
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].ID, msgs[i-1].ID)
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
	for i, m := range msgs[1:] {
		assert.Equal(t, fmt.Sprint(i), m.Content)
		assert.Equal(t, models.MessageTypeText, m.Type)
	}

	require.NoError(t, s.DeleteMessage(ctx, "r", msgs[2].ID))
	assert.ErrorIs(t, s.DeleteMessage(ctx, "r", msgs[2].ID), ErrNotFound)
	msgs, _ = s.ListMessages(ctx, "r")
	assert.Len(t, msgs, 5)
}

func TestService_MessagesOrderedByIDNotClientTimestamp(t *testing.T) {
	ctx := context.Background()
	s := setupTestService(t)

	// a caller-supplied timestamp in the future is replaced on append
	future := time.Now().Add(time.Hour)
	require.NoError(t, s.AppendMessage(ctx, &models.ChatMessage{RoomID: "r", SenderID: "u", Content: "first", Timestamp: future}))
	require.NoError(t, s.AppendMessage(ctx, &models.ChatMessage{RoomID: "r", SenderID: "u", Content: "second"}))

	msgs, err := s.ListMessages(ctx, "r")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.True(t, msgs[0].Timestamp.Before(future))
}

func TestService_CloseRoom(t *testing.T) {
	ctx := context.Background()
	s := setupTestService(t)
	req := newServicePending(t, s, "speaker")
	_, err := s.AcceptRequest(ctx, AcceptParams{RequestID: req.ID, RoomID: "r", ListenerID: "l"})
	require.NoError(t, err)

	require.NoError(t, s.CloseRoom(ctx, "r"))
	room, err := s.GetRoom(ctx, "r")
	require.NoError(t, err)
	assert.False(t, room.IsActive)
	assert.NotNil(t, room.EndedAt)

	active, err := s.ListRooms(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, s.CloseRoom(ctx, "nope"), ErrNotFound)
}

func TestService_Bans(t *testing.T) {
	ctx := context.Background()
	s := setupTestService(t)
	now := time.Now().UTC()

	require.NoError(t, s.SaveBan(ctx, &models.Ban{ClientID: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.SaveBan(ctx, &models.Ban{ClientID: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.SaveBan(ctx, &models.Ban{ClientID: "live", Reason: "again", ExpiresAt: now.Add(2 * time.Hour)}))

	n, err := s.DeleteExpiredBans(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	bans, err := s.ListBans(ctx)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "again", bans[0].Reason)

	require.NoError(t, s.DeleteBan(ctx, "live"))
	assert.ErrorIs(t, s.DeleteBan(ctx, "live"), ErrNotFound)
}
