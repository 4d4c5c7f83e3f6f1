package handler

import (
	"net/http"

	"kindred/backend/internal/moderation"

	"github.com/gin-gonic/gin"
)

type speakRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type crisisChoiceRequest struct {
	Choice string `json:"choice" validate:"required,oneof=specialist peer"`
}

// Speak submits a distress message. A crisis hit answers 422 with the
// crisis prompt and nothing is stored.
func (h *Handler) Speak(c *gin.Context) {
	var req speakRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Intake.Speak(c.Request.Context(), identity(c), req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	reply := res.Reply
	if !res.Rewritten {
		reply = h.Localizer.GetString(lang(c), "ack.fallback")
	}
	c.JSON(http.StatusCreated, gin.H{"requestId": res.RequestID, "reply": reply, "rewritten": res.Rewritten})
}

func (h *Handler) CrisisChoice(c *gin.Context) {
	var req crisisChoiceRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.Moderation.ResolveCrisis(c.Request.Context(), identity(c), moderation.CrisisChoice(req.Choice))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ListPending(c *gin.Context) {
	reqs, err := h.Ledger.Pending(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// ListMine lists the caller's accepted requests.
func (h *Handler) ListMine(c *gin.Context) {
	reqs, err := h.Ledger.OwnAccepted(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) Accept(c *gin.Context) {
	roomID, err := h.Matcher.Accept(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID})
}
