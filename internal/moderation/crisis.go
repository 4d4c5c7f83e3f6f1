package moderation

import (
	"context"
	"errors"
	"log"

	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
)

type CrisisChoice string

const (
	ChoiceSpecialist CrisisChoice = "specialist"
	ChoicePeer       CrisisChoice = "peer"
)

var ErrUnknownChoice = errors.New("unknown crisis choice")

// CrisisPrompt is shown instead of sending a message that hit the crisis
// policy. It cannot be dismissed except by picking one of the options.
type CrisisPrompt struct {
	Options []CrisisChoice `json:"options"`
}

// CrisisError is returned instead of storing text that hit the crisis
// policy. It carries the prompt the client must show.
type CrisisError struct {
	guard.BlockedError
	Prompt CrisisPrompt
}

func (e *CrisisError) Unwrap() error { return &e.BlockedError }

// CrisisOutcome tells the client where to go after a choice.
type CrisisOutcome struct {
	Choice CrisisChoice `json:"choice"`
	// Next is "specialist-queue" or "speak".
	Next string `json:"next"`
}

// EscalateCrisis builds the prompt. Nothing is recorded.
func (s *Service) EscalateCrisis() CrisisPrompt {
	return CrisisPrompt{Options: []CrisisChoice{ChoiceSpecialist, ChoicePeer}}
}

// ResolveCrisis applies the user's choice. Choosing a specialist alerts the
// specialist queue; the alert is best effort and never fails the call.
func (s *Service) ResolveCrisis(ctx context.Context, who models.Identity, choice CrisisChoice) (CrisisOutcome, error) {
	switch choice {
	case ChoiceSpecialist:
		if err := s.Alerter.SpecialistRequested(ctx, who); err != nil {
			log.Printf("ERROR: Specialist alert for %s failed: %v", who.UserID, err)
		}
		return CrisisOutcome{Choice: choice, Next: "specialist-queue"}, nil
	case ChoicePeer:
		return CrisisOutcome{Choice: choice, Next: "speak"}, nil
	}
	return CrisisOutcome{}, ErrUnknownChoice
}
