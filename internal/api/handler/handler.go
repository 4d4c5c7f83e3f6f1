package handler

import (
	"kindred/backend/internal/admin"
	"kindred/backend/internal/api/validator"
	"kindred/backend/internal/auth"
	"kindred/backend/internal/community"
	"kindred/backend/internal/intake"
	"kindred/backend/internal/journal"
	"kindred/backend/internal/ledger"
	"kindred/backend/internal/localization"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/session"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на всі сервіси
type Handler struct {
	Auth       *auth.Service
	Intake     *intake.Service
	Ledger     *ledger.Ledger
	Matcher    *ledger.Coordinator
	Session    *session.Session
	Moderation *moderation.Service
	Journal    *journal.Service
	Board      *community.Board
	Admin      *admin.Console
	Localizer  *localization.Localizer
	Validator  *validator.Validator
}

// NewHandler fills in the validator when the caller leaves it empty.
func NewHandler(h Handler) *Handler {
	if h.Validator == nil {
		h.Validator = validator.New()
	}
	return &h
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.Use(h.Localize())

	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/signin", h.SignIn)

	authed := r.Group("", h.RequireAuth())
	authed.POST("/auth/signout", h.SignOut)
	authed.PATCH("/auth/profile", h.UpdateProfile)
	authed.GET("/suspension", h.GetSuspension)

	// все нижче закрите для заблокованих клієнтів
	p := authed.Group("", h.SuspensionGate())
	p.POST("/speak", h.Speak)
	p.POST("/crisis/choice", h.CrisisChoice)

	p.GET("/requests", h.ListPending)
	p.GET("/requests/mine", h.ListMine)
	p.POST("/requests/:id/accept", h.Accept)

	p.GET("/rooms/:id/messages", h.RoomMessages)
	p.POST("/rooms/:id/messages", h.PostMessage)
	p.POST("/rooms/:id/report", h.Report)
	p.POST("/rooms/:id/leave", h.Leave)

	p.GET("/journal", h.ListJournal)
	p.POST("/journal", h.AddJournal)

	p.GET("/echoes/:mood", h.ListEchoes)
	p.POST("/echoes/:mood", h.PostEcho)

	p.GET("/ws/requests", h.WatchPending)
	p.GET("/ws/requests/mine", h.WatchMine)
	p.GET("/ws/rooms/:id", h.WatchRoom)
	p.GET("/ws/echoes/:mood", h.WatchEchoes)

	a := authed.Group("/admin", h.RequireAdmin())
	a.GET("/requests", h.AdminRequests)
	a.GET("/rooms", h.AdminRooms)
	a.GET("/rooms/:id/messages", h.AdminRoomMessages)
	a.DELETE("/rooms/:id/messages/:msg", h.AdminDeleteMessage)
	a.GET("/reports", h.AdminReports)
	a.DELETE("/reports/:id", h.AdminResolveReport)
	a.GET("/bans", h.AdminBans)
	a.DELETE("/bans/:client", h.AdminLiftBan)
	a.GET("/journal", h.AdminJournal)
	a.POST("/journal/scan", h.AdminScanJournal)
	a.DELETE("/echoes/:id", h.AdminDeleteEcho)
	a.GET("/ws/reports", h.AdminWatchReports)
}

// bind decodes the JSON body into dst and validates it. On failure the
// response is already written.
func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.invalid(c, nil)
		return false
	}
	if errs := h.Validator.ValidateStruct(dst); errs != nil {
		h.invalid(c, errs)
		return false
	}
	return true
}
