package web

import (
	"strings"

	"maildash/middleware"
	"maildash/models"
	"maildash/session"
	"maildash/store"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// base resolves the caller's store for every page handler
type base struct {
	sessions *session.Manager
	log      *utils.Logger
}

func (b base) storeFor(c *fiber.Ctx) (*store.Store, models.Session, error) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return nil, models.Session{}, utils.UnauthorizedError("Not logged in", session.ErrNoSession)
	}
	return b.sessions.Store(sess), sess, nil
}

// load fills the store once per session. A failed refresh with emails
// already loaded is reported through the returned notice instead.
func (b base) load(c *fiber.Ctx, st *store.Store, userID string, force bool) (string, error) {
	if err := st.FetchEmails(c.UserContext(), userID, force); err != nil {
		if !st.Loaded() {
			return "", err
		}
		return utils.T(localizer(c), "message_stale"), nil
	}
	return "", nil
}

func localizer(c *fiber.Ctx) *i18n.Localizer {
	loc, _ := c.Locals("localizer").(*i18n.Localizer)
	return loc
}

// page adds the values the layout reads to data
func page(c *fiber.Ctx, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}
	data["Lang"] = c.Locals("lang")
	data["Localizer"] = localizer(c)
	data["CSRFToken"] = middleware.CSRFToken(c)
	data["Path"] = c.Path()
	if sess, ok := middleware.CurrentSession(c); ok {
		data["UserID"] = sess.UserID
	}
	return data
}

func render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	return c.Status(status).Render(name, page(c, data))
}

// back redirects to the local path in the "next" form field, or fallback
func back(c *fiber.Ctx, fallback string) error {
	next := c.FormValue("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = fallback
	}
	return c.Redirect(next, fiber.StatusSeeOther)
}
