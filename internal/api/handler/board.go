package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListJournal(c *gin.Context) {
	entries, err := h.Journal.List(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) AddJournal(c *gin.Context) {
	var req contentRequest
	if !h.bind(c, &req) {
		return
	}
	entry, err := h.Journal.Add(c.Request.Context(), identity(c).UserID, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// moodParam validates the :mood segment; on failure the response is written.
func (h *Handler) moodParam(c *gin.Context) (string, bool) {
	mood := c.Param("mood")
	if errs := h.Validator.Validate(mood, "mood"); errs != nil {
		h.invalid(c, errs)
		return "", false
	}
	return mood, true
}

func (h *Handler) ListEchoes(c *gin.Context) {
	mood, ok := h.moodParam(c)
	if !ok {
		return
	}
	echoes, err := h.Board.Latest(c.Request.Context(), mood)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, echoes)
}

func (h *Handler) PostEcho(c *gin.Context) {
	mood, ok := h.moodParam(c)
	if !ok {
		return
	}
	var req contentRequest
	if !h.bind(c, &req) {
		return
	}
	echo, err := h.Board.Post(c.Request.Context(), mood, identity(c), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, echo)
}
