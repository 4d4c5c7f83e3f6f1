package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kindred/backend/internal/chathub"
	"kindred/backend/internal/models"
	"kindred/backend/internal/storage"
)

var (
	// ErrAlreadyMatched is returned to every acceptor but the first.
	ErrAlreadyMatched = errors.New("request already matched")
	ErrSelfMatch      = errors.New("cannot accept your own request")
)

// DefaultGreeting is the system message that opens every room.
const DefaultGreeting = "You are connected. Take your time, and be kind to each other."

// Coordinator is the MatchCoordinator.
type Coordinator struct {
	Storage  storage.Storage
	Notifier chathub.Notifier
	Greeting string

	now func() time.Time
}

func NewCoordinator(s storage.Storage, notifier chathub.Notifier) *Coordinator {
	return &Coordinator{
		Storage:  s,
		Notifier: notifier,
		Greeting: DefaultGreeting,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RoomID derives the room identifier from both participants and the
// acceptance time.
func RoomID(speakerID, listenerID string, acceptedAt time.Time) string {
	return fmt.Sprintf("%s_%s_%d", speakerID, listenerID, acceptedAt.UnixMilli())
}

// Accept pairs listener with the request and returns the new room id.
// Only the first of any number of concurrent calls succeeds; the rest get
// ErrAlreadyMatched and no room is created for them.
func (c *Coordinator) Accept(ctx context.Context, requestID string, listener models.Identity) (string, error) {
	req, err := c.Storage.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.SpeakerID == listener.UserID {
		return "", ErrSelfMatch
	}
	if !req.IsPending() {
		return "", ErrAlreadyMatched
	}

	roomID := RoomID(req.SpeakerID, listener.UserID, c.now())
	accepted, err := c.Storage.AcceptRequest(ctx, storage.AcceptParams{
		RequestID:    requestID,
		RoomID:       roomID,
		ListenerID:   listener.UserID,
		ListenerName: listener.DisplayName,
		Greeting:     c.Greeting,
	})
	if errors.Is(err, storage.ErrConflict) {
		log.Printf("INFO: Listener %s lost the race for request %s", listener.UserID, requestID)
		return "", ErrAlreadyMatched
	}
	if err != nil {
		return "", err
	}

	if c.Notifier != nil {
		c.Notifier.Notify(chathub.TopicRequests)
		c.Notifier.Notify(chathub.RoomTopic(roomID))
	}

	log.Printf("Match found: %s and %s in room %s", accepted.SpeakerID, listener.UserID, roomID)
	return roomID, nil
}
