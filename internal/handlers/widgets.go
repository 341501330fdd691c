package handlers

import (
	"github.com/abem93/progress-widgets/internal/embed"
	"github.com/abem93/progress-widgets/internal/middleware"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/abem93/progress-widgets/internal/progress"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetWidgets(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	widgets, err := h.Widgets.List(c.UserContext(), userID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(widgets)
}

func (h *Handler) GetWidget(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	widget, err := h.Widgets.Get(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(widget)
}

func (h *Handler) CreateWidget(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.CreateWidgetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	widget, err := h.Widgets.Create(c.UserContext(), userID, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(widget)
}

func (h *Handler) UpdateWidget(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.WidgetPatch
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	widget, err := h.Widgets.Update(c.UserContext(), userID, c.Params("id"), req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(widget)
}

func (h *Handler) DeleteWidget(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	if err := h.Widgets.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ApplyItemCommand edits one item with a typed command such as
// {"type":"set_current_goal","current":30,"goal":120}.
func (h *Handler) ApplyItemCommand(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	cmd, err := progress.DecodeCommand(c.Body())
	if err != nil {
		return errorResponse(c, err)
	}

	widget, err := h.Widgets.ApplyItemCommand(c.UserContext(), userID, c.Params("id"), c.Params("itemId"), cmd)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(widget)
}

func (h *Handler) GetWidgetStats(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	stats, err := h.Widgets.Stats(c.UserContext(), userID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(stats)
}

func (h *Handler) GetEmbedCode(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	widget, err := h.Widgets.Get(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"html": embed.Code(h.BaseURL, widget.ID),
		"url":  h.BaseURL + "/embed/" + widget.ID,
	})
}
