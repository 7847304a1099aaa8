package api

import (
	"time"

	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// TokenHandler issues bearer tokens for non-browser clients
type TokenHandler struct {
	base
}

// NewTokenHandler creates a token handler
func NewTokenHandler(sessions *session.Manager, log *utils.Logger) *TokenHandler {
	return &TokenHandler{base{sessions: sessions, log: log}}
}

// Issue returns a signed access token for the current session
func (h *TokenHandler) Issue(c *fiber.Ctx) error {
	_, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	token, expires, err := h.sessions.Token(sess)
	if err != nil {
		return utils.InternalServerError("Failed to issue token", err)
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expires.UTC().Format(time.RFC3339),
		"user_id":    sess.UserID,
	})
}
