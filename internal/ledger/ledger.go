// Package ledger holds help requests and the single place where a pending
// request becomes an accepted pairing.
package ledger

import (
	"context"
	"log"

	"kindred/backend/internal/chathub"
	"kindred/backend/internal/models"
	"kindred/backend/internal/storage"
)

// Ledger is the RequestLedger: append, query and live subscription over
// help requests.
type Ledger struct {
	Storage  storage.Storage
	Hub      *chathub.Hub
	Notifier chathub.Notifier
}

// NewLedger wires the ledger. Writes notify through notifier, which may be a
// cross-instance relay; subscriptions always attach to the local hub.
func NewLedger(s storage.Storage, hub *chathub.Hub, notifier chathub.Notifier) *Ledger {
	if notifier == nil {
		notifier = hub
	}
	return &Ledger{Storage: s, Hub: hub, Notifier: notifier}
}

// Submit creates a pending request and returns its id. Requests are not
// de-duplicated: a speaker may have several pending at once.
func (l *Ledger) Submit(ctx context.Context, speakerID, speakerName, summary string) (string, error) {
	req := &models.HelpRequest{
		SpeakerID:   speakerID,
		SpeakerName: speakerName,
		Summary:     summary,
		Status:      models.StatusPending,
	}
	if err := l.Storage.CreateRequest(ctx, req); err != nil {
		return "", err
	}
	l.Notifier.Notify(chathub.TopicRequests)
	log.Printf("INFO: Help request %s submitted by %s", req.ID, speakerID)
	return req.ID, nil
}

// Pending lists pending requests, newest first.
func (l *Ledger) Pending(ctx context.Context) ([]models.HelpRequest, error) {
	return l.Storage.ListRequests(ctx, storage.RequestFilter{Status: models.StatusPending})
}

// OwnAccepted lists the speaker's accepted requests, newest first.
func (l *Ledger) OwnAccepted(ctx context.Context, speakerID string) ([]models.HelpRequest, error) {
	return l.Storage.ListRequests(ctx, storage.RequestFilter{Status: models.StatusAccepted, SpeakerID: speakerID})
}

// WatchPending streams the pending list for listener views.
func (l *Ledger) WatchPending(ctx context.Context) *chathub.Subscription[[]models.HelpRequest] {
	return chathub.Watch(ctx, l.Hub, chathub.TopicRequests, l.Pending)
}

// WatchOwnAccepted streams the speaker's accepted requests; a new entry
// carrying a roomId means a listener picked the request up.
func (l *Ledger) WatchOwnAccepted(ctx context.Context, speakerID string) *chathub.Subscription[[]models.HelpRequest] {
	return chathub.Watch(ctx, l.Hub, chathub.TopicRequests, func(ctx context.Context) ([]models.HelpRequest, error) {
		return l.OwnAccepted(ctx, speakerID)
	})
}
