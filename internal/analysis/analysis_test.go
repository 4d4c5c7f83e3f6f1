package analysis

import (
	"strings"
	"testing"
	"time"

	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_FlagsCrisisEntries(t *testing.T) {
	// Arrange
	now := time.Now().UTC()
	entries := []models.JournalEntry{
		{ID: 1, UserID: "u1", Content: "Went for a walk, felt ok", Timestamp: now},
		{ID: 2, UserID: "u2", Content: "Some days I Want To Die", Timestamp: now},
		{ID: 3, UserID: "u1", Content: "thinking about self-harm again", Timestamp: now},
	}
	s := NewScanner(guard.Default())

	// Act
	flags := s.Scan(entries)

	// Assert
	require.Len(t, flags, 2)
	assert.Equal(t, uint(2), flags[0].EntryID)
	assert.Equal(t, "want to die", flags[0].Term)
	assert.Equal(t, "u1", flags[1].UserID)
	assert.Equal(t, "self-harm", flags[1].Term)
}

func TestScan_NoEntries(t *testing.T) {
	assert.Empty(t, NewScanner(guard.Default()).Scan(nil))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short"))

	long := strings.Repeat("я", 100)
	got := Excerpt(long)
	assert.Equal(t, strings.Repeat("я", excerptRunes)+"…", got)
}
