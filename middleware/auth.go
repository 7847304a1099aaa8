package middleware

import (
	"strings"
	"time"

	"maildash/models"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// LocalsSession is the locals key holding the resolved models.Session
const LocalsSession = "session"

// SessionResolver maps a browser session key or bearer token to a session
type SessionResolver interface {
	Current(sessionKey string) (models.Session, error)
	ParseToken(raw string) (models.Session, error)
}

// AuthConfig configures RequireAuth
type AuthConfig struct {
	Sessions *session.Store
	Resolver SessionResolver
	// RedirectTo, when set, sends unauthenticated browsers there instead
	// of answering 401.
	RedirectTo string
}

// RequireAuth resolves the caller from an Authorization: Bearer token or
// the session cookie and stores it under LocalsSession.
func RequireAuth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
			sess, err := cfg.Resolver.ParseToken(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
			if err != nil {
				return utils.UnauthorizedError("Invalid access token", err)
			}
			c.Locals(LocalsSession, sess)
			return c.Next()
		}

		key, err := SessionKey(c, cfg.Sessions)
		if err != nil {
			return utils.InternalServerError("Failed to load session", err)
		}
		sess, err := cfg.Resolver.Current(key)
		if err != nil {
			if cfg.RedirectTo != "" {
				return c.Redirect(cfg.RedirectTo)
			}
			return utils.UnauthorizedError("Not logged in", err)
		}

		c.Locals(LocalsSession, sess)
		return c.Next()
	}
}

// SessionKey returns the id of the browser session, saving a new session
// so its cookie reaches the client.
func SessionKey(c *fiber.Ctx, store *session.Store) (string, error) {
	sess, err := store.Get(c)
	if err != nil {
		return "", err
	}
	id := sess.ID()
	if sess.Fresh() {
		sess.Set("created_at", time.Now().Unix())
		if err := sess.Save(); err != nil {
			return "", err
		}
	}
	return id, nil
}

// CurrentSession returns the session stored by RequireAuth
func CurrentSession(c *fiber.Ctx) (models.Session, bool) {
	sess, ok := c.Locals(LocalsSession).(models.Session)
	return sess, ok && sess.UserID != ""
}
