package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"kindred/backend/internal/models"

	"github.com/google/uuid"
)

// Memory is an in-process Storage used by tests and STORAGE_DRIVER=memory.
// Every timestamp it assigns is strictly greater than the previous one, so
// records written in sequence never share a sort key.
type Memory struct {
	mu sync.Mutex

	requests map[string]models.HelpRequest
	rooms    map[string]models.ChatRoom
	messages map[string][]models.ChatMessage
	reports  map[string]models.Report
	bans     map[string]models.Ban
	journal  []models.JournalEntry
	echoes   []models.Echo
	users    map[string]models.User

	seq   uint
	last  time.Time
	clock func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[string]models.HelpRequest),
		rooms:    make(map[string]models.ChatRoom),
		messages: make(map[string][]models.ChatMessage),
		reports:  make(map[string]models.Report),
		bans:     make(map[string]models.Ban),
		users:    make(map[string]models.User),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// now must be called with mu held.
func (m *Memory) now() time.Time {
	t := m.clock()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *Memory) nextID() uint {
	m.seq++
	return m.seq
}

func (m *Memory) CreateRequest(_ context.Context, req *models.HelpRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if _, ok := m.requests[req.ID]; ok {
		return ErrConflict
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.now()
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*models.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (m *Memory) ListRequests(_ context.Context, filter RequestFilter) ([]models.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.HelpRequest, 0, len(m.requests))
	for _, r := range m.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.SpeakerID != "" && r.SpeakerID != filter.SpeakerID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) AcceptRequest(_ context.Context, p AcceptParams) (*models.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[p.RequestID]
	if !ok {
		return nil, ErrNotFound
	}
	if !req.IsPending() {
		return nil, ErrConflict
	}
	if _, taken := m.rooms[p.RoomID]; taken {
		return nil, ErrConflict
	}

	now := m.now()
	req.Status = models.StatusAccepted
	req.RoomID = p.RoomID
	req.ListenerID = p.ListenerID
	req.ListenerName = p.ListenerName
	req.AcceptedAt = &now
	m.requests[req.ID] = req

	m.rooms[p.RoomID] = models.ChatRoom{
		RoomID:     p.RoomID,
		RequestID:  req.ID,
		SpeakerID:  req.SpeakerID,
		ListenerID: p.ListenerID,
		IsActive:   true,
		StartedAt:  now,
	}
	m.messages[p.RoomID] = append(m.messages[p.RoomID], models.ChatMessage{
		ID:        m.nextID(),
		RoomID:    p.RoomID,
		SenderID:  models.SystemSenderID,
		Content:   p.Greeting,
		Type:      models.MessageTypeSystem,
		Timestamp: now,
	})
	return &req, nil
}

func (m *Memory) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[id]; !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *Memory) GetRoom(_ context.Context, roomID string) (*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (m *Memory) ListRooms(_ context.Context, activeOnly bool) ([]models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ChatRoom, 0, len(m.rooms))
	for _, r := range m.rooms {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (m *Memory) CloseRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	room.IsActive = false
	room.EndedAt = &now
	m.rooms[roomID] = room
	return nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.ID = m.nextID()
	msg.Timestamp = m.now()
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], *msg)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, roomID string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[roomID]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) DeleteMessage(_ context.Context, roomID string, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[roomID]
	for i := range msgs {
		if msgs[i].ID == id {
			m.messages[roomID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SaveReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = models.ReportPending
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = m.now()
	}
	m.reports[r.ID] = *r
	return nil
}

func (m *Memory) ListReports(_ context.Context) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReportedAt.After(out[j].ReportedAt)
	})
	return out, nil
}

func (m *Memory) DeleteReport(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *Memory) SaveBan(_ context.Context, b *models.Ban) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = m.now()
	}
	m.bans[b.ClientID] = *b
	return nil
}

func (m *Memory) ListBans(_ context.Context) ([]models.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Ban, 0, len(m.bans))
	for _, b := range m.bans {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.After(out[j].ExpiresAt)
	})
	return out, nil
}

func (m *Memory) DeleteBan(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bans[clientID]; !ok {
		return ErrNotFound
	}
	delete(m.bans, clientID)
	return nil
}

func (m *Memory) DeleteExpiredBans(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, b := range m.bans {
		if !b.Active(now) {
			delete(m.bans, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) AddJournalEntry(_ context.Context, e *models.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextID()
	e.Timestamp = m.now()
	m.journal = append(m.journal, *e)
	return nil
}

func (m *Memory) ListJournalEntries(_ context.Context, userID string) ([]models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.JournalEntry
	for i := len(m.journal) - 1; i >= 0; i-- {
		if userID == "" || m.journal[i].UserID == userID {
			out = append(out, m.journal[i])
		}
	}
	return out, nil
}

func (m *Memory) ListJournalEntriesSince(_ context.Context, since time.Time) ([]models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.JournalEntry
	for _, e := range m.journal {
		if e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) AddEcho(_ context.Context, e *models.Echo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextID()
	e.Timestamp = m.now()
	m.echoes = append(m.echoes, *e)
	return nil
}

func (m *Memory) ListEchoes(_ context.Context, mood string, limit int) ([]models.Echo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Echo
	for i := len(m.echoes) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if mood == "" || m.echoes[i].Mood == mood {
			out = append(out, m.echoes[i])
		}
	}
	return out, nil
}

func (m *Memory) DeleteEcho(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.echoes {
		if m.echoes[i].ID == id {
			m.echoes = append(m.echoes[:i:i], m.echoes[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.CredentialKey == u.CredentialKey {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByCredential(_ context.Context, key string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.CredentialKey == key {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateDisplayName(_ context.Context, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.DisplayName = name
	m.users[userID] = u
	return nil
}

var _ Storage = (*Memory)(nil)
