// Package admin is the moderation console: read access to every collection
// plus the few destructive operations reserved for administrators.
package admin

import (
	"context"
	"fmt"
	"log"
	"time"

	"kindred/backend/internal/analysis"
	"kindred/backend/internal/chathub"
	"kindred/backend/internal/config"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/storage"
)

type Console struct {
	Storage    storage.Storage
	Hub        *chathub.Hub
	Notifier   chathub.Notifier
	Moderation *moderation.Service
	Scanner    *analysis.Scanner
}

func NewConsole(s storage.Storage, hub *chathub.Hub, notifier chathub.Notifier, mod *moderation.Service, scanner *analysis.Scanner) *Console {
	if notifier == nil {
		notifier = hub
	}
	return &Console{Storage: s, Hub: hub, Notifier: notifier, Moderation: mod, Scanner: scanner}
}

// Requests lists help requests; an empty status lists all of them.
func (c *Console) Requests(ctx context.Context, status models.RequestStatus) ([]models.HelpRequest, error) {
	return c.Storage.ListRequests(ctx, storage.RequestFilter{Status: status})
}

func (c *Console) Rooms(ctx context.Context, activeOnly bool) ([]models.ChatRoom, error) {
	return c.Storage.ListRooms(ctx, activeOnly)
}

// RoomMessages returns a room's full log regardless of participation.
func (c *Console) RoomMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	if _, err := c.Storage.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return c.Storage.ListMessages(ctx, roomID)
}

// DeleteMessage is the only way a message ever leaves a room log.
func (c *Console) DeleteMessage(ctx context.Context, roomID string, id uint) error {
	if err := c.Storage.DeleteMessage(ctx, roomID, id); err != nil {
		return err
	}
	c.Notifier.Notify(chathub.RoomTopic(roomID))
	log.Printf("INFO: Message %d deleted from room %s", id, roomID)
	return nil
}

func (c *Console) Reports(ctx context.Context) ([]models.Report, error) {
	return c.Storage.ListReports(ctx)
}

// ResolveReport deletes the report.
func (c *Console) ResolveReport(ctx context.Context, id string) error {
	if err := c.Storage.DeleteReport(ctx, id); err != nil {
		return err
	}
	c.Notifier.Notify(chathub.TopicReports)
	log.Printf("INFO: Report %s resolved", id)
	return nil
}

// WatchReports streams the open reports for the dashboard.
func (c *Console) WatchReports(ctx context.Context) *chathub.Subscription[[]models.Report] {
	return chathub.Watch(ctx, c.Hub, chathub.TopicReports, c.Reports)
}

func (c *Console) Bans(ctx context.Context) ([]models.Ban, error) {
	return c.Storage.ListBans(ctx)
}

func (c *Console) LiftBan(ctx context.Context, clientID string) error {
	return c.Moderation.LiftSuspension(ctx, clientID)
}

// Journal lists a user's entries, or every entry when userID is empty.
func (c *Console) Journal(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	if userID != "" {
		return c.Storage.ListJournalEntries(ctx, userID)
	}
	return c.Storage.ListJournalEntriesSince(ctx, time.Time{})
}

// ScanJournal flags crisis vocabulary in entries written after since and
// forwards the flags to the alerter. A failed alert does not fail the scan.
func (c *Console) ScanJournal(ctx context.Context, since time.Time) ([]analysis.Flag, error) {
	entries, err := c.Storage.ListJournalEntriesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	flags := c.Scanner.Scan(entries)
	if len(flags) == 0 {
		return flags, nil
	}

	log.Printf("WARNING: Journal scan flagged %d of %d entries", len(flags), len(entries))
	if err := c.Moderation.Alerter.CrisisFlags(ctx, flags); err != nil {
		log.Printf("ERROR: Failed to send crisis flags alert: %v", err)
	}
	return flags, nil
}

// DeleteEcho removes a board post. The mood is not known here, so every
// board is refreshed.
func (c *Console) DeleteEcho(ctx context.Context, id uint) error {
	if err := c.Storage.DeleteEcho(ctx, id); err != nil {
		return err
	}
	for _, mood := range config.Moods {
		c.Notifier.Notify(chathub.EchoTopic(mood))
	}
	log.Printf("INFO: Echo %d deleted", id)
	return nil
}
