package api

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kataras/golog"
)

// NewApp builds the Fiber app with middleware and all routes.
// A nil accessLog disables the access log.
func NewApp(h *Handler, bodyLimitMB int, log *golog.Logger, accessLog io.Writer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "vectorbrain",
		BodyLimit:             bodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(log),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	if accessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
			Output: accessLog,
		}))
	}

	RegisterRoutes(app, h)
	return app
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)
	app.Get("/models", h.ListModels)

	rag := app.Group("/rag")
	rag.Post("/upload", h.Upload)
	rag.Post("/query", h.Query)
	rag.Post("/ask", h.Ask)

	app.Post("/vectors", h.CreateVector)
	app.Get("/vectors/count", h.CountVectors)
}
