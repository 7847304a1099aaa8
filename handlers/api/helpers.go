package api

import (
	"context"
	"errors"
	"strconv"

	"maildash/middleware"
	"maildash/models"
	"maildash/remote"
	"maildash/session"
	"maildash/store"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// base resolves the caller's store for every API handler
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

// RemoteError converts a store or mail API failure into an AppError.
// A 401 from the mail API stays 401; any other upstream failure is 502.
func RemoteError(message string, err error) error {
	var apiErr *remote.APIError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrEmptyQuery):
		return utils.BadRequestError("Search query is required", err)
	case errors.Is(err, remote.ErrUnauthorized):
		return utils.UnauthorizedError("Mail account authorization expired", err)
	case errors.Is(err, context.Canceled):
		return utils.NewAppError(499, "Request canceled", err)
	case errors.As(err, &apiErr):
		return utils.BadGatewayError(message, err).WithContext("upstream_status", apiErr.Status)
	default:
		return utils.BadGatewayError(message, err)
	}
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
