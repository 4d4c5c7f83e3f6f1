package community_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kindred/backend/internal/chathub"
	"kindred/backend/internal/community"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoard() (*community.Board, *moderation.MemorySuspensionStore) {
	store := storage.NewMemory()
	hub := chathub.NewHub()
	susp := moderation.NewMemorySuspensionStore()
	mod := moderation.NewService(store, susp, nil, hub)
	return community.NewBoard(store, hub, nil, guard.Default(), mod), susp
}

func TestBoard_PostAndWatchNewestFirst(t *testing.T) {
	ctx := context.Background()
	b, _ := newBoard()
	b.Limit = 3

	sub, err := b.Watch(ctx, "calm")
	require.NoError(t, err)
	defer sub.Cancel()

	for i := 0; i < 5; i++ {
		_, err := b.Post(ctx, "calm", models.Identity{UserID: "u"}, fmt.Sprintf("breathe %d", i))
		require.NoError(t, err)
	}
	_, err = b.Post(ctx, "sad", models.Identity{UserID: "u"}, "elsewhere")
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-sub.C:
			if len(snap) == 3 && snap[0].Content == "breathe 4" {
				assert.Equal(t, "breathe 2", snap[2].Content)
				assert.Equal(t, "Anonymous", snap[0].AuthorName)
				return
			}
		case <-deadline:
			t.Fatal("board never converged")
		}
	}
}

func TestBoard_UnknownMood(t *testing.T) {
	b, _ := newBoard()
	_, err := b.Post(context.Background(), "ecstatic", models.Identity{UserID: "u"}, "hi")
	assert.ErrorIs(t, err, community.ErrUnknownMood)

	_, err = b.Watch(context.Background(), "ecstatic")
	assert.ErrorIs(t, err, community.ErrUnknownMood)
}

func TestBoard_ToxicPostSuspends(t *testing.T) {
	ctx := context.Background()
	b, susp := newBoard()
	who := models.Identity{UserID: "u", ClientID: "dev"}

	_, err := b.Post(ctx, "angry", who, "everyone here is a loser")

	var blocked *guard.BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, guard.BlockToxicity, blocked.Verdict)
	_, ok, _ := susp.Get(ctx, "dev")
	assert.True(t, ok)

	echoes, err := b.Latest(ctx, "angry")
	require.NoError(t, err)
	assert.Empty(t, echoes)
}

func TestBoard_ToxicCrisisPostSuspendsAndPrompts(t *testing.T) {
	ctx := context.Background()
	b, susp := newBoard()
	who := models.Identity{UserID: "u", ClientID: "dev"}

	_, err := b.Post(ctx, "sad", who, "you idiot, I want to die")

	var crisis *moderation.CrisisError
	require.True(t, errors.As(err, &crisis))
	assert.Equal(t, guard.BlockCrisis, crisis.Verdict)
	assert.Equal(t, []moderation.CrisisChoice{moderation.ChoiceSpecialist, moderation.ChoicePeer}, crisis.Prompt.Options)
	_, ok, _ := susp.Get(ctx, "dev")
	assert.True(t, ok)

	echoes, err := b.Latest(ctx, "sad")
	require.NoError(t, err)
	assert.Empty(t, echoes)
}
