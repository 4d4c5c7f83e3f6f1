// Package guard classifies outbound text before it is persisted.
// All checks are synchronous and side-effect free; callers decide what a
// verdict means for the user (warning banner, crisis prompt, suspension).
package guard

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of evaluating a candidate message.
type Verdict int

const (
	Allow Verdict = iota
	BlockPrivacy
	BlockCrisis
	BlockToxicity
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case BlockPrivacy:
		return "block-privacy"
	case BlockCrisis:
		return "block-crisis"
	case BlockToxicity:
		return "block-toxicity"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// MarshalText lets verdicts appear as strings in JSON responses.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

var (
	// 10-11 digits. Each gap may hold up to three spaces, dots, dashes or
	// parentheses, which covers "(010) 1234-5678" and "+1 (555) 123-4567".
	phonePattern = regexp.MustCompile(`\d(?:[\s.\-()]{0,3}\d){9,10}`)
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
)

// Guard holds the lowercased vocabularies for the three policies.
type Guard struct {
	crisis   []string
	toxicity []string
	contacts []string
}

// New builds a Guard from a vocabulary. Terms are matched case-insensitively
// as substrings.
func New(v Vocabulary) *Guard {
	return &Guard{
		crisis:   lowerAll(v.Crisis),
		toxicity: lowerAll(v.Toxicity),
		contacts: lowerAll(v.ContactFragments),
	}
}

// Default returns a Guard with the built-in vocabulary.
func Default() *Guard {
	return New(DefaultVocabulary())
}

// Evaluate classifies a speak submission. Both the crisis and the privacy
// policy are evaluated; crisis dominates.
func (g *Guard) Evaluate(text string) Verdict {
	crisis := g.IsCrisis(text)
	leak := g.LeaksContact(text)
	switch {
	case crisis:
		return BlockCrisis
	case leak:
		return BlockPrivacy
	}
	return Allow
}

// EvaluateChat classifies a chat or board message. Toxicity is checked in
// addition to the speak policies. Precedence: crisis, toxicity, privacy.
func (g *Guard) EvaluateChat(text string) Verdict {
	switch {
	case g.IsCrisis(text):
		return BlockCrisis
	case g.IsToxic(text):
		return BlockToxicity
	case g.LeaksContact(text):
		return BlockPrivacy
	}
	return Allow
}

// LeaksContact reports phone numbers, email addresses and messenger links.
func (g *Guard) LeaksContact(text string) bool {
	if phonePattern.MatchString(text) || emailPattern.MatchString(text) {
		return true
	}
	_, ok := firstMatch(strings.ToLower(text), g.contacts)
	return ok
}

func (g *Guard) IsCrisis(text string) bool {
	_, ok := g.CrisisTerm(text)
	return ok
}

// CrisisTerm returns the first crisis term found in text.
func (g *Guard) CrisisTerm(text string) (string, bool) {
	return firstMatch(strings.ToLower(text), g.crisis)
}

func (g *Guard) IsToxic(text string) bool {
	_, ok := firstMatch(strings.ToLower(text), g.toxicity)
	return ok
}

// Check turns a verdict into an error; Allow yields nil.
func Check(v Verdict) error {
	if v == Allow {
		return nil
	}
	return &BlockedError{Verdict: v}
}

// BlockedError is returned by services when a message was rejected by policy.
// It is an expected outcome, not a system failure.
type BlockedError struct {
	Verdict Verdict
}

func (e *BlockedError) Error() string {
	return "message blocked: " + e.Verdict.String()
}

func firstMatch(lowered string, terms []string) (string, bool) {
	for _, t := range terms {
		if t != "" && strings.Contains(lowered, t) {
			return t, true
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
