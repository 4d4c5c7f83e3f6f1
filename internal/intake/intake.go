// Package intake turns a speaker's raw text into a pending help request.
package intake

import (
	"context"
	"errors"
	"strings"

	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/ledger"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/rewrite"
)

var ErrEmptyText = errors.New("nothing to share")

// SpeakResult is returned for an accepted submission.
type SpeakResult struct {
	RequestID string `json:"requestId"`
	// Reply is the acknowledgment shown to the speaker; it is also the
	// request summary listeners see.
	Reply     string `json:"reply"`
	Rewritten bool   `json:"rewritten"`
}

type Service struct {
	Guard      *guard.Guard
	Rewriter   *rewrite.Rewriter
	Ledger     *ledger.Ledger
	Moderation *moderation.Service
}

func NewService(g *guard.Guard, r *rewrite.Rewriter, l *ledger.Ledger, m *moderation.Service) *Service {
	return &Service{Guard: g, Rewriter: r, Ledger: l, Moderation: m}
}

// Speak runs guard, rewrite and submit in that order. The raw text never
// reaches storage; only the acknowledgment does.
func (s *Service) Speak(ctx context.Context, who models.Identity, text string) (*SpeakResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := s.Moderation.CheckSuspension(ctx, who); err != nil {
		return nil, err
	}

	switch verdict := s.Guard.Evaluate(text); verdict {
	case guard.Allow:
	case guard.BlockCrisis:
		return nil, &moderation.CrisisError{
			BlockedError: guard.BlockedError{Verdict: verdict},
			Prompt:       s.Moderation.EscalateCrisis(),
		}
	default:
		return nil, &guard.BlockedError{Verdict: verdict}
	}

	reply, rewritten := s.Rewriter.Acknowledge(ctx, text)

	name := who.DisplayName
	if name == "" {
		name = config.DefaultDisplayName
	}
	id, err := s.Ledger.Submit(ctx, who.UserID, name, reply)
	if err != nil {
		return nil, err
	}
	return &SpeakResult{RequestID: id, Reply: reply, Rewritten: rewritten}, nil
}
