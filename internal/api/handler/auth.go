package handler

import (
	"errors"
	"net/http"
	"strings"

	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"

	"github.com/gin-gonic/gin"
)

const (
	ctxIdentity = "identity"
	ctxToken    = "token"
	ctxLang     = "lang"

	clientIDHeader = "X-Client-ID"
)

type signUpRequest struct {
	Handle      string `json:"handle" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"displayName" validate:"max=80"`
}

type signInRequest struct {
	Handle   string `json:"handle" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

type profileRequest struct {
	DisplayName string `json:"displayName" validate:"max=80"`
}

// Localize resolves the response language from Accept-Language.
func (h *Handler) Localize() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxLang, h.Localizer.Match(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// RequireAuth accepts a Bearer token, or a "token" query parameter for
// WebSocket upgrades where browsers cannot set headers.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			h.unauthorized(c)
			return
		}

		who, err := h.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.unauthorized(c)
			return
		}
		who.ClientID = c.GetHeader(clientIDHeader)
		if who.ClientID == "" {
			who.ClientID = c.Query("client_id")
		}

		c.Set(ctxIdentity, who)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "forbidden", "error": "administrators only"})
			return
		}
		c.Next()
	}
}

// SuspensionGate answers 403 with the remaining time while the caller is
// suspended.
func (h *Handler) SuspensionGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Moderation.CheckSuspension(c.Request.Context(), identity(c)); err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !h.bind(c, &req) {
		return
	}
	sess, err := h.Auth.SignUp(c.Request.Context(), req.Handle, req.Password, req.DisplayName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if !h.bind(c, &req) {
		return
	}
	sess, err := h.Auth.SignIn(c.Request.Context(), req.Handle, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.Auth.SignOut(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !h.bind(c, &req) {
		return
	}
	sess, err := h.Auth.UpdateDisplayName(c.Request.Context(), identity(c).UserID, req.DisplayName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GetSuspension reports the caller's suspension without blocking the call.
func (h *Handler) GetSuspension(c *gin.Context) {
	err := h.Moderation.CheckSuspension(c.Request.Context(), identity(c))
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"suspended": false})
		return
	}
	var s *moderation.SuspendedError
	if errors.As(err, &s) {
		c.JSON(http.StatusOK, gin.H{
			"suspended": true,
			"expiresAt": s.ExpiresAt,
			"remaining": moderation.FormatRemaining(s.Remaining),
			"message":   h.Localizer.Format(lang(c), "suspended", moderation.FormatRemaining(s.Remaining)),
		})
		return
	}
	h.respondError(c, err)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func identity(c *gin.Context) models.Identity {
	who, _ := c.Get(ctxIdentity)
	id, _ := who.(models.Identity)
	return id
}

func lang(c *gin.Context) string {
	return c.GetString(ctxLang)
}
