package handler

import (
	"net/http"
	"strconv"
	"time"

	"kindred/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AdminRequests(c *gin.Context) {
	reqs, err := h.Admin.Requests(c.Request.Context(), models.RequestStatus(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) AdminRooms(c *gin.Context) {
	rooms, err := h.Admin.Rooms(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) AdminRoomMessages(c *gin.Context) {
	msgs, err := h.Admin.RoomMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) AdminDeleteMessage(c *gin.Context) {
	id, ok := h.uintParam(c, "msg")
	if !ok {
		return
	}
	if err := h.Admin.DeleteMessage(c.Request.Context(), c.Param("id"), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminReports(c *gin.Context) {
	reports, err := h.Admin.Reports(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) AdminResolveReport(c *gin.Context) {
	if err := h.Admin.ResolveReport(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminBans(c *gin.Context) {
	bans, err := h.Admin.Bans(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bans)
}

func (h *Handler) AdminLiftBan(c *gin.Context) {
	if err := h.Admin.LiftBan(c.Request.Context(), c.Param("client")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminJournal(c *gin.Context) {
	entries, err := h.Admin.Journal(c.Request.Context(), c.Query("user"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// AdminScanJournal scans entries after ?since (RFC3339), or all entries.
func (h *Handler) AdminScanJournal(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.invalid(c, nil)
			return
		}
		since = t
	}
	flags, err := h.Admin.ScanJournal(c.Request.Context(), since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

func (h *Handler) AdminDeleteEcho(c *gin.Context) {
	id, ok := h.uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.Admin.DeleteEcho(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		h.invalid(c, nil)
		return 0, false
	}
	return uint(v), true
}
