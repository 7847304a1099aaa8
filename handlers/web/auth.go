package web

import (
	"errors"

	"maildash/middleware"
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// AuthHandler drives the OAuth login through the mail API
type AuthHandler struct {
	store    *fibersession.Store
	sessions *session.Manager
	log      *utils.Logger
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(store *fibersession.Store, sessions *session.Manager, log *utils.Logger) *AuthHandler {
	return &AuthHandler{
		store:    store,
		sessions: sessions,
		log:      log,
	}
}

// ShowLogin renders the login page, or goes home when already logged in
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	key, err := middleware.SessionKey(c, h.store)
	if err == nil {
		if _, err := h.sessions.Current(key); err == nil {
			return c.Redirect("/")
		}
	}
	return render(c, fiber.StatusOK, "login", nil)
}

// StartLogin sends the browser to the provider consent page
func (h *AuthHandler) StartLogin(c *fiber.Ctx) error {
	authURL, err := h.sessions.Login(c.UserContext())
	if err != nil {
		return render(c, fiber.StatusBadGateway, "login", fiber.Map{
			"Error": utils.T(localizer(c), "login_unavailable"),
		})
	}
	return c.Redirect(authURL, fiber.StatusSeeOther)
}

// Callback finishes the OAuth flow started by StartLogin
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	key, err := middleware.SessionKey(c, h.store)
	if err != nil {
		return utils.InternalServerError("Failed to load session", err)
	}

	sess, err := h.sessions.Callback(c.UserContext(), key, c.Query("code"))
	if err != nil {
		status := fiber.StatusBadGateway
		message := utils.T(localizer(c), "login_exchange_failed")
		if errors.Is(err, session.ErrMissingCode) {
			status = fiber.StatusBadRequest
			message = utils.T(localizer(c), "login_missing_code")
		}
		return render(c, status, "callback", fiber.Map{"Error": message})
	}

	h.log.WithField("user_id", sess.UserID).Info("browser logged in")
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Logout ends the session and returns to the login page
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	if err := h.sessions.Logout(sess.ID()); err != nil {
		h.log.Error("logout failed: %v", err)
	}
	if err := sess.Destroy(); err != nil {
		h.log.Warn("failed to destroy session: %v", err)
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}
