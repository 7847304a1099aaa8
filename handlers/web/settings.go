package web

import (
	"time"

	"maildash/handlers/api"
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler renders the account page: language, refresh and tokens
type SettingsHandler struct {
	base
}

// NewSettingsHandler creates a settings page handler
func NewSettingsHandler(sessions *session.Manager, log *utils.Logger) *SettingsHandler {
	return &SettingsHandler{base{sessions: sessions, log: log}}
}

func (h *SettingsHandler) settings(c *fiber.Ctx, status int, extra fiber.Map) error {
	st, _, err := h.storeFor(c)
	if err != nil {
		return err
	}

	data := fiber.Map{
		"Languages": utils.SupportedLanguages,
		"Loaded":    st.Loaded(),
		"Synced":    st.Synced(),
		"Stats":     st.Stats(),
	}
	if lastErr := st.Err(); lastErr != nil {
		data["LastError"] = lastErr.Error()
	}
	for k, v := range extra {
		data[k] = v
	}
	return render(c, status, "settings", data)
}

// ShowSettings renders the settings page
func (h *SettingsHandler) ShowSettings(c *fiber.Ctx) error {
	return h.settings(c, fiber.StatusOK, nil)
}

// UpdateSettings stores the chosen language in the lang cookie
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	lang := c.FormValue("language")
	if !utils.IsSupportedLanguage(lang) {
		return h.settings(c, fiber.StatusBadRequest, fiber.Map{
			"Error": utils.T(localizer(c), "settings_unknown_language"),
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "lang",
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 3600,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect("/settings", fiber.StatusSeeOther)
}

// Refresh resyncs the mailbox and reloads the email list
func (h *SettingsHandler) Refresh(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if err := st.FetchEmails(c.UserContext(), sess.UserID, true); err != nil {
		return api.RemoteError("Failed to refresh emails", err)
	}
	return back(c, "/settings")
}

// Token issues an access token for API clients and shows it once
func (h *SettingsHandler) Token(c *fiber.Ctx) error {
	_, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	token, expires, err := h.sessions.Token(sess)
	if err != nil {
		return utils.InternalServerError("Failed to issue token", err)
	}
	return h.settings(c, fiber.StatusOK, fiber.Map{
		"Token":        token,
		"TokenExpires": expires.UTC().Format(time.RFC3339),
	})
}
