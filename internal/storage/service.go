package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kindred/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the PostgreSQL implementation of Storage.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate creates or updates every table.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(AllModels()...)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) CreateRequest(ctx context.Context, req *models.HelpRequest) error {
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if err := s.DB.WithContext(ctx).Create(req).Error; err != nil {
		log.Printf("ERROR: Failed to save help request for speaker %s: %v", req.SpeakerID, err)
		return err
	}
	return nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (*models.HelpRequest, error) {
	var req models.HelpRequest
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]models.HelpRequest, error) {
	q := s.DB.WithContext(ctx).Model(&models.HelpRequest{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SpeakerID != "" {
		q = q.Where("speaker_id = ?", filter.SpeakerID)
	}

	var out []models.HelpRequest
	if err := q.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

// AcceptRequest runs the transition in one transaction. The conditional
// UPDATE ... WHERE status = 'pending' is the compare-and-swap: a concurrent
// acceptor blocks on the row lock and then matches zero rows.
func (s *Service) AcceptRequest(ctx context.Context, p AcceptParams) (*models.HelpRequest, error) {
	var accepted models.HelpRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&models.HelpRequest{}).
			Where("id = ? AND status = ?", p.RequestID, models.StatusPending).
			Updates(map[string]interface{}{
				"status":        models.StatusAccepted,
				"room_id":       p.RoomID,
				"listener_id":   p.ListenerID,
				"listener_name": p.ListenerName,
				"accepted_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.HelpRequest{}).Where("id = ?", p.RequestID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrConflict
		}

		if err := tx.Where("id = ?", p.RequestID).First(&accepted).Error; err != nil {
			return err
		}

		room := models.ChatRoom{
			RoomID:     p.RoomID,
			RequestID:  p.RequestID,
			SpeakerID:  accepted.SpeakerID,
			ListenerID: p.ListenerID,
			IsActive:   true,
			StartedAt:  now,
		}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}

		greeting := models.ChatMessage{
			RoomID:    p.RoomID,
			SenderID:  models.SystemSenderID,
			Content:   p.Greeting,
			Type:      models.MessageTypeSystem,
			Timestamp: now,
		}
		return tx.Create(&greeting).Error
	})
	if err != nil {
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
			log.Printf("ERROR: Failed to accept request %s: %v", p.RequestID, err)
		}
		return nil, err
	}
	return &accepted, nil
}

func (s *Service) DeleteRequest(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.HelpRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		}
		return nil, notFound(err)
	}
	return &room, nil
}

func (s *Service) ListRooms(ctx context.Context, activeOnly bool) ([]models.ChatRoom, error) {
	q := s.DB.WithContext(ctx).Model(&models.ChatRoom{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rooms []models.ChatRoom
	if err := q.Order("started_at desc").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// CloseRoom закриває кімнату, встановлюючи IsActive = false та EndedAt
func (s *Service) CloseRoom(ctx context.Context, roomID string) error {
	res := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage takes the room row lock before inserting, so ids and
// timestamps are assigned in commit order and readers never see a later
// message before an earlier one.
func (s *Service) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.ChatRoom
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("room_id = ?", msg.RoomID).Find(&room).Error; err != nil {
			return err
		}
		msg.Timestamp = time.Now().UTC()
		return tx.Create(msg).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return err
	}
	return nil
}

func (s *Service) ListMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).Order("id asc").Find(&msgs).Error; err != nil {
		log.Printf("ERROR: Failed to get chat history for room %s: %v", roomID, err)
		return nil, err
	}
	return msgs, nil
}

func (s *Service) DeleteMessage(ctx context.Context, roomID string, id uint) error {
	res := s.DB.WithContext(ctx).Where("room_id = ? AND id = ?", roomID, id).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) SaveReport(ctx context.Context, r *models.Report) error {
	if r.Status == "" {
		r.Status = models.ReportPending
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		log.Printf("ERROR: Failed to save report for room %s: %v", r.RoomID, err)
		return err
	}
	return nil
}

func (s *Service) ListReports(ctx context.Context) ([]models.Report, error) {
	var out []models.Report
	if err := s.DB.WithContext(ctx).Order("reported_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteReport(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Report{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveBan inserts or replaces the ban for the client.
func (s *Service) SaveBan(ctx context.Context, b *models.Ban) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return s.DB.WithContext(ctx).Save(b).Error
}

func (s *Service) ListBans(ctx context.Context) ([]models.Ban, error) {
	var out []models.Ban
	if err := s.DB.WithContext(ctx).Order("expires_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteBan(ctx context.Context, clientID string) error {
	res := s.DB.WithContext(ctx).Where("client_id = ?", clientID).Delete(&models.Ban{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Ban{})
	return res.RowsAffected, res.Error
}

func (s *Service) AddJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return s.DB.WithContext(ctx).Create(e).Error
}

// ListJournalEntries returns the user's entries, or every entry when userID is empty.
func (s *Service) ListJournalEntries(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	q := s.DB.WithContext(ctx).Model(&models.JournalEntry{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []models.JournalEntry
	if err := q.Order("timestamp desc, id desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	return out, nil
}

// ListJournalEntriesSince returns entries written after since, oldest first.
func (s *Service) ListJournalEntriesSince(ctx context.Context, since time.Time) ([]models.JournalEntry, error) {
	var out []models.JournalEntry
	if err := s.DB.WithContext(ctx).Where("timestamp > ?", since).Order("timestamp asc, id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list journal since: %w", err)
	}
	return out, nil
}

func (s *Service) AddEcho(ctx context.Context, e *models.Echo) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return s.DB.WithContext(ctx).Create(e).Error
}

// ListEchoes returns the newest echoes for a mood, or across moods when mood is empty.
func (s *Service) ListEchoes(ctx context.Context, mood string, limit int) ([]models.Echo, error) {
	q := s.DB.WithContext(ctx).Model(&models.Echo{})
	if mood != "" {
		q = q.Where("mood = ?", mood)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Echo
	if err := q.Order("timestamp desc, id desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list echoes: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteEcho(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Echo{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		log.Printf("ERROR: Failed to save user: %v", err)
		return err
	}
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Service) GetUserByCredential(ctx context.Context, key string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("credential_key = ?", key).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("display_name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Storage = (*Service)(nil)
