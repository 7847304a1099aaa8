// Package handlers holds what the api and web handlers share: the app
// error handler and request classification.
package handlers

import (
	"errors"
	"strings"

	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// IsAPIRequest reports whether c expects JSON rather than a rendered page
func IsAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	if c.Get("HX-Request") != "" {
		return true
	}
	return strings.HasPrefix(c.Path(), "/api") || strings.HasPrefix(c.Path(), "/ws")
}

// ErrorHandler maps AppError and fiber.Error to a status code, answering
// JSON for API requests and the error view otherwise.
func ErrorHandler(log *utils.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if appErr, ok := utils.AsAppError(err); ok {
			code = appErr.Code
			message = appErr.Message
			if code >= 500 {
				log.Error("%s %s: %v", c.Method(), c.Path(), appErr)
			} else {
				log.Debug("%s %s: %v", c.Method(), c.Path(), appErr)
			}
		} else if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.Error("%s %s: unhandled error: %v", c.Method(), c.Path(), err)
		}

		if IsAPIRequest(c) {
			return c.Status(code).JSON(fiber.Map{
				"error": message,
				"code":  code,
			})
		}

		if renderErr := c.Status(code).Render("error", fiber.Map{
			"Error":     message,
			"Code":      code,
			"Lang":      c.Locals("lang"),
			"Localizer": c.Locals("localizer"),
		}); renderErr != nil {
			return c.Status(code).SendString(message)
		}
		return nil
	}
}
