package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"matchastock/internal/domain"
	applog "matchastock/internal/log"
)

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = "Matcha Stock"
	}
	return c.Render(tmpl, data)
}

func notFoundPage(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Title": "Not found", "Message": msg})
}

func badRequest(c *fiber.Ctx, field string, fields map[string]string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	body := fiber.Map{"error": "invalid " + field}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// fail maps a service error onto a JSON response. Unexpected errors are
// logged and reported without detail.
func fail(c *fiber.Ctx, action string, err error, fields map[string]any) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if errors.Is(err, domain.ErrConflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already exists"})
	}
	applog.Error(c, action, err, fields)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
