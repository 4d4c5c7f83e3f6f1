package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kindred/backend/internal/chathub"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/session"
	"kindred/backend/internal/storage"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	speaker  = models.Identity{UserID: "speaker", DisplayName: "Sam", ClientID: "dev-s"}
	listener = models.Identity{UserID: "listener", DisplayName: "Lee", ClientID: "dev-l"}
)

type fixture struct {
	store *storage.Memory
	susp  *moderation.MemorySuspensionStore
	sess  *session.Session
	room  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemory()
	hub := chathub.NewHub()
	susp := moderation.NewMemorySuspensionStore()
	mod := moderation.NewService(store, susp, nil, hub)

	req := &models.HelpRequest{SpeakerID: speaker.UserID, Summary: "s"}
	require.NoError(t, store.CreateRequest(ctx, req))
	_, err := store.AcceptRequest(ctx, storage.AcceptParams{RequestID: req.ID, RoomID: "room", ListenerID: listener.UserID, Greeting: "hello"})
	require.NoError(t, err)

	return &fixture{
		store: store,
		susp:  susp,
		sess:  session.New(store, hub, nil, guard.Default(), mod),
		room:  "room",
	}
}

func TestPost_RoundTripOrdered(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	const n = 30

	// Act
	var want []string
	for i := 0; i < n; i++ {
		who := speaker
		if i%2 == 1 {
			who = listener
		}
		content := fmt.Sprintf("message %d", i)
		_, err := f.sess.Post(ctx, f.room, who, content)
		require.NoError(t, err)
		want = append(want, content)
	}

	// Assert
	sub, err := f.sess.Watch(ctx, f.room, speaker.UserID)
	require.NoError(t, err)
	defer sub.Cancel()

	var snap []models.ChatMessage
	select {
	case snap = <-sub.C:
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
	require.Len(t, snap, n+1, "greeting plus every post")

	var got []string
	seen := map[uint]bool{}
	for i, m := range snap[1:] {
		got = append(got, m.Content)
		assert.False(t, seen[m.ID], "duplicate message")
		seen[m.ID] = true
		assert.False(t, m.Timestamp.Before(snap[i].Timestamp), "timestamps must not decrease")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("room log mismatch (-want +got):\n%s", diff)
	}
}

func TestPost_ToxicitySuspendsAndDiscards(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	before := time.Now()

	// Act
	_, err := f.sess.Post(ctx, f.room, listener, "you are such an IDIOT")

	// Assert
	var blocked *guard.BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, guard.BlockToxicity, blocked.Verdict)

	msgs, err := f.store.ListMessages(ctx, f.room)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.NotContains(t, m.Content, "IDIOT")
	}

	exp, ok, err := f.susp.Get(ctx, listener.ClientID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, before.Add(24*time.Hour), exp, 5*time.Second)

	// the next post is refused while suspended
	_, err = f.sess.Post(ctx, f.room, listener, "sorry")
	var suspended *moderation.SuspendedError
	assert.True(t, errors.As(err, &suspended))
}

func TestPost_PrivacyAndCrisisBlockWithoutSuspension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sess.Post(ctx, f.room, speaker, "text me at 010-1234-5678")
	var blocked *guard.BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, guard.BlockPrivacy, blocked.Verdict)

	_, err = f.sess.Post(ctx, f.room, speaker, "i want to die")
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, guard.BlockCrisis, blocked.Verdict)
	var crisis *moderation.CrisisError
	require.True(t, errors.As(err, &crisis))
	assert.Equal(t, []moderation.CrisisChoice{moderation.ChoiceSpecialist, moderation.ChoicePeer}, crisis.Prompt.Options)

	_, ok, _ := f.susp.Get(ctx, speaker.ClientID)
	assert.False(t, ok)

	msgs, _ := f.store.ListMessages(ctx, f.room)
	assert.Len(t, msgs, 1)
}

func TestPost_ToxicCrisisSuspendsAndPrompts(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()

	// Act
	_, err := f.sess.Post(ctx, f.room, listener, "you idiot, I want to die")

	// Assert
	var crisis *moderation.CrisisError
	require.True(t, errors.As(err, &crisis))
	assert.Equal(t, guard.BlockCrisis, crisis.Verdict)
	assert.NotEmpty(t, crisis.Prompt.Options)

	_, ok, err := f.susp.Get(ctx, listener.ClientID)
	require.NoError(t, err)
	assert.True(t, ok, "toxic text suspends even when it also hits the crisis policy")

	msgs, _ := f.store.ListMessages(ctx, f.room)
	assert.Len(t, msgs, 1)
}

func TestPost_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sess.Post(ctx, f.room, speaker, "   ")
	assert.ErrorIs(t, err, session.ErrEmptyMessage)

	_, err = f.sess.Post(ctx, f.room, models.Identity{UserID: "stranger"}, "hi")
	assert.ErrorIs(t, err, session.ErrNotParticipant)

	_, err = f.sess.Post(ctx, "nope", speaker, "hi")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.sess.Watch(ctx, f.room, "stranger")
	assert.ErrorIs(t, err, session.ErrNotParticipant)
}

func TestLeave_ClosesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.Leave(ctx, f.room, speaker))
	require.NoError(t, f.sess.Leave(ctx, f.room, listener))

	msgs, err := f.sess.Messages(ctx, f.room, listener.UserID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Sam has left the conversation.", msgs[1].Content)
	assert.Equal(t, models.MessageTypeSystem, msgs[1].Type)

	_, err = f.sess.Post(ctx, f.room, listener, "still there?")
	assert.ErrorIs(t, err, session.ErrRoomClosed)
}
