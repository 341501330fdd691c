package handlers

import (
	"time"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/auth"
	"github.com/abem93/progress-widgets/internal/embed"
	"github.com/abem93/progress-widgets/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Handler carries the services behind the HTTP routes.
type Handler struct {
	Widgets  *store.WidgetService
	Auth     *auth.Service
	Tokens   *auth.Tokens
	Embeds   *embed.Resolver
	Sessions *Hub

	// BaseURL is the public origin used in embed snippets.
	BaseURL string
	// LinkTTL bounds how long the pending-email cookie lives.
	LinkTTL      time.Duration
	SecureCookie bool
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return fiber.StatusBadRequest
	case apperr.CodeNotFound, apperr.CodeForbidden:
		return fiber.StatusNotFound
	case apperr.CodeVerification, apperr.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case apperr.CodeDelivery:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// errorResponse renders err as {"error": msg} with the status of its kind.
// Internal failures are logged and their details withheld.
func errorResponse(c *fiber.Ctx, err error) error {
	status := statusFor(apperr.CodeOf(err))
	msg := apperr.Message(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
		if status == fiber.StatusInternalServerError {
			msg = "Internal server error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
