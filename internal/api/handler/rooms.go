package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type contentRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

func (h *Handler) RoomMessages(c *gin.Context) {
	msgs, err := h.Session.Messages(c.Request.Context(), c.Param("id"), identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) PostMessage(c *gin.Context) {
	var req contentRequest
	if !h.bind(c, &req) {
		return
	}
	msg, err := h.Session.Post(c.Request.Context(), c.Param("id"), identity(c), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Report files a harassment report; the conversation stays open.
func (h *Handler) Report(c *gin.Context) {
	report, err := h.Moderation.ReportParticipant(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reportId": report.ID})
}

func (h *Handler) Leave(c *gin.Context) {
	if err := h.Session.Leave(c.Request.Context(), c.Param("id"), identity(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
