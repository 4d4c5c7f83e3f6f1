package storage

import (
	"context"
	"errors"
	"time"

	"kindred/backend/internal/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost against a
	// concurrent writer or a unique key is already taken.
	ErrConflict = errors.New("conflicting write")
)

// RequestFilter selects help requests. Zero fields match everything.
type RequestFilter struct {
	Status    models.RequestStatus
	SpeakerID string
}

// AcceptParams describes a pending -> accepted transition.
type AcceptParams struct {
	RequestID    string
	RoomID       string
	ListenerID   string
	ListenerName string
	// Greeting is stored as the first message of the new room.
	Greeting string
}

type Storage interface {
	// Help requests. ListRequests returns newest first.
	CreateRequest(ctx context.Context, req *models.HelpRequest) error
	GetRequest(ctx context.Context, id string) (*models.HelpRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.HelpRequest, error)
	// AcceptRequest atomically moves a pending request to accepted, opens the
	// room and stores its greeting. It fails with ErrConflict if the request is
	// no longer pending at commit time.
	AcceptRequest(ctx context.Context, p AcceptParams) (*models.HelpRequest, error)
	DeleteRequest(ctx context.Context, id string) error

	// Rooms and messages. ListMessages returns messages in append order.
	GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, activeOnly bool) ([]models.ChatRoom, error)
	CloseRoom(ctx context.Context, roomID string) error
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	DeleteMessage(ctx context.Context, roomID string, id uint) error

	// Moderation records.
	SaveReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context) ([]models.Report, error)
	DeleteReport(ctx context.Context, id string) error
	SaveBan(ctx context.Context, b *models.Ban) error
	ListBans(ctx context.Context) ([]models.Ban, error)
	DeleteBan(ctx context.Context, clientID string) error
	DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error)

	// Journal and community board. Both list newest first.
	AddJournalEntry(ctx context.Context, e *models.JournalEntry) error
	ListJournalEntries(ctx context.Context, userID string) ([]models.JournalEntry, error)
	ListJournalEntriesSince(ctx context.Context, since time.Time) ([]models.JournalEntry, error)
	AddEcho(ctx context.Context, e *models.Echo) error
	ListEchoes(ctx context.Context, mood string, limit int) ([]models.Echo, error)
	DeleteEcho(ctx context.Context, id uint) error

	// Accounts.
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByCredential(ctx context.Context, key string) (*models.User, error)
	UpdateDisplayName(ctx context.Context, userID, name string) error
}

// AllModels lists every record type for migrations.
func AllModels() []interface{} {
	return []interface{}{
		&models.HelpRequest{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.Report{},
		&models.Ban{},
		&models.JournalEntry{},
		&models.Echo{},
		&models.User{},
	}
}
