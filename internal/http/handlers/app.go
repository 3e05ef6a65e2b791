package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "matchastock/internal/log"
)

type AppConfig struct {
	TemplatesDir string
	// RateLimit is requests per minute per client on the API; 0 means 60.
	RateLimit int
	AccessLog bool
}

// NewApp builds the fiber app serving the catalog API, subscriptions, the
// unsubscribe page, health and metrics.
func NewApp(deps *Deps, cfg AppConfig) *fiber.App {
	engine := html.New(cfg.TemplatesDir, ".html")

	app := fiber.New(fiber.Config{
		Views:                 engine,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < 500 {
				code = fe.Code
			}
			if code >= 500 {
				applog.Error(c, "server.error", err, nil)
			}
			msg := "Something went wrong. Please try again."
			if code == fiber.StatusNotFound {
				msg = "Page not found"
			}
			if strings.HasPrefix(c.Path(), "/api/v1") {
				return c.Status(code).JSON(fiber.Map{"error": msg})
			}
			if rerr := c.Status(code).Render("notfound", fiber.Map{"Title": "Error", "Message": msg}); rerr != nil {
				return c.Status(code).SendString(msg)
			}
			return nil
		},
	})
	app.Server().MaxRequestBodySize = 64 << 10

	app.Use(requestid.New())
	if cfg.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())

	rate := cfg.RateLimit
	if rate <= 0 {
		rate = 60
	}
	app.Use(limiter.New(limiter.Config{
		Max:        rate,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Get("/brands", deps.CatalogHandler.Brands)
	api.Get("/brands/:id", deps.CatalogHandler.Brand)
	api.Get("/products", deps.CatalogHandler.Products)
	api.Get("/products/:id", deps.CatalogHandler.Product)
	api.Post("/users", deps.SubscriptionHandler.Register)
	api.Post("/subscriptions", deps.SubscriptionHandler.SubscribeBrand)
	api.Post("/products/:id/subscriptions", deps.SubscriptionHandler.SubscribeProduct)

	// Links in outbound messages point here; keep the path stable.
	app.Get("/api/unsubscribe", deps.UnsubscribeHandler.Unsubscribe)

	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return notFoundPage(c, "Page not found")
	})
	return app
}
