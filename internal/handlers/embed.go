package handlers

import (
	"errors"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/embed"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// EmbedPage serves the public widget page loaded by the iframe snippet.
func (h *Handler) EmbedPage(c *fiber.Ctx) error {
	view, err := h.Embeds.Resolve(c.UserContext(), utils.CopyString(c.Params("id")))
	if errors.Is(err, apperr.ErrNotFound) {
		page, rerr := embed.RenderNotFound()
		if rerr != nil {
			return errorResponse(c, rerr)
		}
		c.Type("html", "utf-8")
		return c.Status(fiber.StatusNotFound).Send(page)
	}
	if err != nil {
		return errorResponse(c, err)
	}

	page, err := embed.RenderHTML(view)
	if err != nil {
		return errorResponse(c, err)
	}
	c.Type("html", "utf-8")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(page)
}

// GetEmbed returns the public rendering data as JSON.
func (h *Handler) GetEmbed(c *fiber.Ctx) error {
	view, err := h.Embeds.Resolve(c.UserContext(), utils.CopyString(c.Params("id")))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(view)
}
