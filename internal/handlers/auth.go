package handlers

import (
	"time"

	"github.com/abem93/progress-widgets/internal/middleware"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// PendingEmailCookie holds the address a link was sent to from this browser.
const PendingEmailCookie = "emailForSignIn"

// cookieSlot keeps the pending email in a cookie on the requesting browser.
type cookieSlot struct {
	c      *fiber.Ctx
	ttl    time.Duration
	secure bool
}

func (h *Handler) pendingSlot(c *fiber.Ctx) *cookieSlot {
	ttl := h.LinkTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &cookieSlot{c: c, ttl: ttl, secure: h.SecureCookie}
}

func (s *cookieSlot) PendingEmail() (string, error) {
	return s.c.Cookies(PendingEmailCookie), nil
}

func (s *cookieSlot) SetPendingEmail(email string) error {
	s.c.Cookie(&fiber.Cookie{
		Name:     PendingEmailCookie,
		Value:    email,
		Path:     "/",
		Expires:  time.Now().Add(s.ttl),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (s *cookieSlot) ClearPendingEmail() error {
	s.c.ClearCookie(PendingEmailCookie)
	return nil
}

func (h *Handler) SendMagicLink(c *fiber.Ctx) error {
	var req models.MagicLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.Auth.SendMagicLink(c.UserContext(), h.pendingSlot(c), req.Email); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Check your email for a sign-in link",
	})
}

func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req models.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.Auth.SignUp(c.UserContext(), h.pendingSlot(c), req.Email, req.Name); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Check your email to finish creating your account",
	})
}

// CompleteSignIn is the magic link's landing route. The address comes from
// the email query parameter or, failing that, the pending cookie.
func (h *Handler) CompleteSignIn(c *fiber.Ctx) error {
	currentURL := c.BaseURL() + c.OriginalURL()

	user, err := h.Auth.CompleteMagicLinkSignIn(c.UserContext(), h.pendingSlot(c), c.Query("email"), currentURL)
	if err != nil {
		return errorResponse(c, err)
	}

	token, err := h.Tokens.Issue(sessionOf(user))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// Logout revokes every credential of the user, ends the provider session
// and tells every open session stream of the user. Repeating it is harmless.
func (h *Handler) Logout(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	err := h.Auth.SignOut(c.UserContext(), userID)
	if h.Sessions != nil {
		h.Sessions.Publish(userID, nil)
	}
	if err != nil {
		log.Warnf("Auth: sign-out for %s failed: %v", userID, err)
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	user, err := h.Auth.Profile(c.UserContext(), userID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(user)
}
