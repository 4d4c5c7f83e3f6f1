package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"kindred/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const frameRule = "required,max=4000"

var errInvalidFrame = errors.New("invalid frame")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stream upgrades the connection and pumps sub until either side closes.
// Subscriptions are opened before the upgrade so that access errors are
// still plain HTTP responses.
func stream[T any](h *Handler, c *gin.Context, sub *chathub.Subscription[T], onMessage chathub.InboundHandler) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the client
		log.Printf("WARNING: WebSocket upgrade failed: %v", err)
		sub.Cancel()
		return
	}

	client := chathub.NewWebSocketClient(identity(c).UserID, conn, onMessage)
	client.OnError = h.errorFrame(lang(c))
	chathub.Serve(c.Request.Context(), client, sub)
}

func (h *Handler) WatchPending(c *gin.Context) {
	stream(h, c, h.Ledger.WatchPending(c.Request.Context()), nil)
}

// WatchMine streams the caller's accepted requests; a new entry carries the
// room the speaker should join.
func (h *Handler) WatchMine(c *gin.Context) {
	stream(h, c, h.Ledger.WatchOwnAccepted(c.Request.Context(), identity(c).UserID), nil)
}

func (h *Handler) WatchRoom(c *gin.Context) {
	who := identity(c)
	roomID := c.Param("id")
	sub, err := h.Session.Watch(c.Request.Context(), roomID, who.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	stream(h, c, sub, func(ctx context.Context, in chathub.Inbound) error {
		if h.Validator.Validate(in.Content, frameRule) != nil {
			return errInvalidFrame
		}
		_, err := h.Session.Post(ctx, roomID, who, in.Content)
		return err
	})
}

func (h *Handler) WatchEchoes(c *gin.Context) {
	mood, ok := h.moodParam(c)
	if !ok {
		return
	}
	who := identity(c)
	sub, err := h.Board.Watch(c.Request.Context(), mood)
	if err != nil {
		h.respondError(c, err)
		return
	}
	stream(h, c, sub, func(ctx context.Context, in chathub.Inbound) error {
		if h.Validator.Validate(in.Content, frameRule) != nil {
			return errInvalidFrame
		}
		_, err := h.Board.Post(ctx, mood, who, in.Content)
		return err
	})
}

func (h *Handler) AdminWatchReports(c *gin.Context) {
	stream(h, c, h.Admin.WatchReports(c.Request.Context()), nil)
}
