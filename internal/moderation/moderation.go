// Package moderation carries out the side effects of policy verdicts and
// user reports: suspensions, harassment reports and crisis escalation.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kindred/backend/internal/chathub"
	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
	"kindred/backend/internal/storage"
)

// ErrNotParticipant is returned when the caller is not a member of the room.
var ErrNotParticipant = errors.New("not a participant of this room")

// Service handles moderation side effects.
type Service struct {
	Storage     storage.Storage
	Suspensions SuspensionStore
	Alerter     Alerter
	Notifier    chathub.Notifier

	now func() time.Time
}

// NewService creates a new moderation service.
func NewService(s storage.Storage, susp SuspensionStore, alerter Alerter, notifier chathub.Notifier) *Service {
	if alerter == nil {
		alerter = NopAlerter{}
	}
	return &Service{
		Storage:     s,
		Suspensions: susp,
		Alerter:     alerter,
		Notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ImposeSuspension blocks the client for d starting now and records a Ban
// for administrators. The suspension takes effect even if the Ban record
// cannot be written.
func (s *Service) ImposeSuspension(ctx context.Context, who models.Identity, d time.Duration, reason string) (time.Time, error) {
	key := who.SuspensionKey()
	expiresAt := s.now().Add(d)

	if err := s.Suspensions.Set(ctx, key, expiresAt); err != nil {
		log.Printf("ERROR: Failed to suspend client %s: %v", key, err)
		return time.Time{}, err
	}

	ban := &models.Ban{ClientID: key, UserID: who.UserID, Reason: reason, ExpiresAt: expiresAt}
	if err := s.Storage.SaveBan(ctx, ban); err != nil {
		log.Printf("WARNING: Suspension for %s is active but the ban record was not saved: %v", key, err)
	}

	log.Printf("INFO: Client %s suspended until %s (%s)", key, expiresAt.Format(time.RFC3339), reason)
	return expiresAt, nil
}

// ScreenChat applies the chat policy to text posted by who. Toxicity always
// suspends the sender, even when the text also hits the crisis policy; the
// returned error still reports the crisis first so the prompt is shown.
func (s *Service) ScreenChat(ctx context.Context, g *guard.Guard, who models.Identity, text, reason string) error {
	if g.IsToxic(text) {
		if _, err := s.ImposeSuspension(ctx, who, config.ToxicitySuspension, reason); err != nil {
			return err
		}
	}

	switch verdict := g.EvaluateChat(text); verdict {
	case guard.Allow:
		return nil
	case guard.BlockCrisis:
		return &CrisisError{BlockedError: guard.BlockedError{Verdict: verdict}, Prompt: s.EscalateCrisis()}
	default:
		return &guard.BlockedError{Verdict: verdict}
	}
}

// CheckSuspension returns a *SuspendedError while the caller is suspended.
// An expired entry is cleared. A store failure is logged and lets the caller
// through.
func (s *Service) CheckSuspension(ctx context.Context, who models.Identity) error {
	key := who.SuspensionKey()
	expiresAt, ok, err := s.Suspensions.Get(ctx, key)
	if err != nil {
		log.Printf("WARNING: Suspension lookup for %s failed: %v", key, err)
		return nil
	}
	if !ok {
		return nil
	}

	now := s.now()
	if !now.Before(expiresAt) {
		if err := s.Suspensions.Clear(ctx, key); err != nil {
			log.Printf("WARNING: Failed to clear expired suspension for %s: %v", key, err)
		}
		return nil
	}
	return &SuspendedError{ExpiresAt: expiresAt, Remaining: expiresAt.Sub(now)}
}

// LiftSuspension removes a suspension and its Ban record.
func (s *Service) LiftSuspension(ctx context.Context, clientID string) error {
	if err := s.Suspensions.Clear(ctx, clientID); err != nil {
		return fmt.Errorf("clear suspension: %w", err)
	}
	if err := s.Storage.DeleteBan(ctx, clientID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete ban: %w", err)
	}
	log.Printf("INFO: Suspension lifted for %s", clientID)
	return nil
}

// ReportParticipant files a harassment report against the reporter's
// partner, attaching the tail of the room log. The session stays open.
func (s *Service) ReportParticipant(ctx context.Context, roomID string, reporter models.Identity) (*models.Report, error) {
	room, err := s.Storage.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(reporter.UserID) {
		return nil, ErrNotParticipant
	}

	msgs, err := s.Storage.ListMessages(ctx, roomID)
	if err != nil {
		log.Printf("WARNING: Filing report for room %s without message log: %v", roomID, err)
	}

	report := &models.Report{
		RoomID:         roomID,
		ReporterID:     reporter.UserID,
		TargetID:       room.PartnerOf(reporter.UserID),
		Type:           models.ReportTypeHarassment,
		Status:         models.ReportPending,
		LoggedMessages: logTail(msgs, config.ReportLogSize),
	}
	if err := s.Storage.SaveReport(ctx, report); err != nil {
		return nil, err
	}
	if s.Notifier != nil {
		s.Notifier.Notify(chathub.TopicReports)
	}

	if err := s.Alerter.ReportFiled(ctx, report); err != nil {
		log.Printf("WARNING: Report %s saved but alert failed: %v", report.ID, err)
	}
	return report, nil
}

func logTail(msgs []models.ChatMessage, n int) []string {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		name := m.SenderName
		if name == "" {
			name = m.SenderID
		}
		out = append(out, fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format(time.RFC3339), name, m.Content))
	}
	return out
}
