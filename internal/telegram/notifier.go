// Package telegram delivers moderation alerts to Telegram chats.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"kindred/backend/internal/analysis"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBot authorizes the bot token.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)
	return bot, nil
}

// Notifier sends reports and crisis flags to the admin chat and specialist
// requests to the specialist chat. A zero chat id disables that route.
type Notifier struct {
	bot            Sender
	adminChat      int64
	specialistChat int64
}

func NewNotifier(bot Sender, adminChat, specialistChat int64) *Notifier {
	if specialistChat == 0 {
		specialistChat = adminChat
	}
	return &Notifier{bot: bot, adminChat: adminChat, specialistChat: specialistChat}
}

func (n *Notifier) ReportFiled(_ context.Context, r *models.Report) error {
	return n.send(n.adminChat, FormatReport(r))
}

func (n *Notifier) SpecialistRequested(_ context.Context, who models.Identity) error {
	return n.send(n.specialistChat, FormatSpecialistRequest(who, time.Now().UTC()))
}

func (n *Notifier) CrisisFlags(_ context.Context, flags []analysis.Flag) error {
	if len(flags) == 0 {
		return nil
	}
	return n.send(n.adminChat, FormatCrisisFlags(flags))
}

func (n *Notifier) send(chatID int64, text string) error {
	if chatID == 0 {
		return nil
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// FormatReport renders a report with the attached log tail.
func FormatReport(r *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚩 New %s report\n", r.Type)
	fmt.Fprintf(&b, "Room: %s\nReporter: %s\nReported: %s\nReport ID: %s\n", r.RoomID, r.ReporterID, r.TargetID, r.ID)
	if len(r.LoggedMessages) > 0 {
		b.WriteString("\nRecent messages:\n")
		for _, line := range r.LoggedMessages {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatSpecialistRequest(who models.Identity, at time.Time) string {
	name := who.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	return fmt.Sprintf("🆘 Specialist requested\nUser: %s (%s)\nAt: %s", name, who.UserID, at.Format(time.RFC3339))
}

func FormatCrisisFlags(flags []analysis.Flag) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Journal scan: %d entr", len(flags))
	if len(flags) == 1 {
		b.WriteString("y")
	} else {
		b.WriteString("ies")
	}
	b.WriteString(" flagged\n")
	for _, f := range flags {
		fmt.Fprintf(&b, "\n• %s [%s] %q: %s", f.UserID, f.Timestamp.Format(time.RFC3339), f.Term, f.Excerpt)
	}
	return b.String()
}

var _ moderation.Alerter = (*Notifier)(nil)
