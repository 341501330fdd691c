package routes

import (
	"github.com/abem93/progress-widgets/internal/handlers"
	"github.com/abem93/progress-widgets/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func Setup(app *fiber.App, h *handlers.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	// Magic link landing page
	app.Get("/auth/complete", h.CompleteSignIn)

	// Public embeds
	app.Get("/embed/:id", h.EmbedPage)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/magic-link", h.SendMagicLink)
	auth.Post("/signup", h.SignUp)

	api.Get("/embed/:id", h.GetEmbed)

	protected := api.Group("/", middleware.Protected(h.Tokens))

	protected.Get("/me", h.GetMe)
	protected.Post("/auth/logout", h.Logout)

	widgets := protected.Group("/widgets")
	widgets.Get("/", h.GetWidgets)
	widgets.Post("/", h.CreateWidget)
	widgets.Get("/stats", h.GetWidgetStats)
	widgets.Get("/:id", h.GetWidget)
	widgets.Put("/:id", h.UpdateWidget)
	widgets.Delete("/:id", h.DeleteWidget)
	widgets.Get("/:id/embed-code", h.GetEmbedCode)
	widgets.Post("/:id/items/:itemId/commands", h.ApplyItemCommand)

	// Item images are stored inline
	protected.Post("/upload", h.UploadImage)

	// WebSocket for session changes
	app.Use("/ws", h.SessionUpgrade())
	app.Get("/ws/session", websocket.New(h.SessionSocket))
}
