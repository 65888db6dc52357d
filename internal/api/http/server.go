package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-control/internal/config"
)

// NewApp creates the fiber application. Errors are rendered by the error
// middleware, so fiber's default handler only sees failures outside it.
func NewApp(cfg config.AppConfig) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               cfg.Name,
		DisableStartupMessage: cfg.IsProduction(),
		ReadTimeout:           cfg.RequestTimeout(),
	})
}
