package handler

import (
	"errors"
	"log"
	"net/http"

	"kindred/backend/internal/api/validator"
	"kindred/backend/internal/auth"
	"kindred/backend/internal/chathub"
	"kindred/backend/internal/community"
	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/intake"
	"kindred/backend/internal/journal"
	"kindred/backend/internal/ledger"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/session"
	"kindred/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// crisisOption is one button of the crisis prompt.
type crisisOption struct {
	Choice moderation.CrisisChoice `json:"choice"`
	Label  string                  `json:"label"`
}

// describe maps a service error to an HTTP status and a localized body.
// The same body is used for WebSocket error frames.
func (h *Handler) describe(lng string, err error) (int, gin.H) {
	var (
		crisis    *moderation.CrisisError
		blocked   *guard.BlockedError
		suspended *moderation.SuspendedError
	)

	switch {
	case errors.As(err, &crisis):
		options := make([]crisisOption, 0, len(crisis.Prompt.Options))
		for _, o := range crisis.Prompt.Options {
			options = append(options, crisisOption{Choice: o, Label: h.Localizer.GetString(lng, "crisis."+string(o))})
		}
		return http.StatusUnprocessableEntity, gin.H{
			"code":    crisis.Verdict.String(),
			"error":   h.Localizer.GetString(lng, "crisis.title"),
			"options": options,
		}

	case errors.As(err, &blocked):
		body := gin.H{"code": blocked.Verdict.String()}
		switch blocked.Verdict {
		case guard.BlockToxicity:
			body["error"] = h.Localizer.GetString(lng, "warning.toxicity")
			body["remaining"] = moderation.FormatRemaining(config.ToxicitySuspension)
		case guard.BlockCrisis:
			body["error"] = h.Localizer.GetString(lng, "crisis.title")
		default:
			body["error"] = h.Localizer.GetString(lng, "warning.privacy")
			body["ttlMs"] = config.PrivacyWarningTTL.Milliseconds()
		}
		return http.StatusUnprocessableEntity, body

	case errors.As(err, &suspended):
		remaining := moderation.FormatRemaining(suspended.Remaining)
		return http.StatusForbidden, gin.H{
			"code":      "suspended",
			"error":     h.Localizer.Format(lng, "suspended", remaining),
			"remaining": remaining,
			"expiresAt": suspended.ExpiresAt,
		}

	case errors.Is(err, ledger.ErrAlreadyMatched):
		return http.StatusConflict, h.body(lng, "already_matched")
	case errors.Is(err, ledger.ErrSelfMatch):
		return http.StatusConflict, h.body(lng, "self_match")
	case errors.Is(err, session.ErrRoomClosed):
		return http.StatusConflict, h.body(lng, "room_closed")
	case errors.Is(err, auth.ErrHandleTaken):
		return http.StatusConflict, h.body(lng, "handle_taken")
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, h.body(lng, "not_found")
	case errors.Is(err, session.ErrNotParticipant):
		return http.StatusForbidden, h.body(lng, "not_participant")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, h.body(lng, "credentials")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized, h.body(lng, "unauthorized")
	case errors.Is(err, errInvalidFrame),
		errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, intake.ErrEmptyText),
		errors.Is(err, journal.ErrEmptyEntry),
		errors.Is(err, community.ErrEmptyEcho),
		errors.Is(err, community.ErrUnknownMood),
		errors.Is(err, moderation.ErrUnknownChoice),
		errors.Is(err, auth.ErrInvalidHandle),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong):
		body := h.body(lng, "invalid")
		body["detail"] = err.Error()
		return http.StatusBadRequest, body
	}

	log.Printf("ERROR: Unhandled request error: %v", err)
	return http.StatusInternalServerError, h.body(lng, "internal")
}

func (h *Handler) body(lng, code string) gin.H {
	return gin.H{"code": code, "error": h.Localizer.GetString(lng, "error."+code)}
}

// respondError writes err. Failed writes are marked retryable so the client
// can offer a retry.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := h.describe(lang(c), err)
	if status == http.StatusInternalServerError && c.Request.Method != http.MethodGet {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

func (h *Handler) invalid(c *gin.Context, fields []validator.ValidationError) {
	body := h.body(lang(c), "invalid")
	if len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

func (h *Handler) unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, h.body(lang(c), "unauthorized"))
}

// errorFrame renders stream errors with the same codes as HTTP responses.
func (h *Handler) errorFrame(lng string) chathub.ErrorFrame {
	return func(err error) chathub.Envelope {
		_, body := h.describe(lng, err)
		code, _ := body["code"].(string)
		msg, _ := body["error"].(string)
		return chathub.Envelope{Type: chathub.FrameError, Code: code, Error: msg, Data: body}
	}
}
