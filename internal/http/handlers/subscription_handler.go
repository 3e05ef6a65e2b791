package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "matchastock/internal/log"
	"matchastock/internal/services"
	"matchastock/internal/validate"
)

type SubscriptionHandler struct {
	Subs *services.SubscriptionService
}

type contactBody struct {
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type brandSubscriptionBody struct {
	contactBody
	BrandID string `json:"brandId" validate:"required,resource_id"`
}

// contact validates the channels of a request body in place.
func (b *contactBody) contact() bool {
	email, phone, ok := validate.Contact(b.Email, b.Phone)
	if !ok {
		return false
	}
	b.Email, b.Phone = email, phone
	return true
}

// POST /api/v1/users
func (h *SubscriptionHandler) Register(c *fiber.Ctx) error {
	var body contactBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "body", nil)
	}
	if !body.contact() {
		return badRequest(c, "contact", nil)
	}
	u, err := h.Subs.RegisterUser(c.UserContext(), body.Email, body.Phone)
	if err != nil {
		return fail(c, "users.register.fail", err, nil)
	}
	applog.Audit(c, "users.register", map[string]any{"user": u.ID})
	return c.Status(fiber.StatusCreated).JSON(u)
}

// POST /api/v1/subscriptions
func (h *SubscriptionHandler) SubscribeBrand(c *fiber.Ctx) error {
	var body brandSubscriptionBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "body", nil)
	}
	if err := validate.Struct(body); err != nil {
		return badRequest(c, "subscription", validate.Fields(err))
	}
	if !body.contact() {
		return badRequest(c, "contact", nil)
	}
	sub, err := h.Subs.SubscribeBrand(c.UserContext(), body.Email, body.Phone, body.BrandID)
	if err != nil {
		return fail(c, "subscriptions.brand.fail", err, map[string]any{"brand": body.BrandID})
	}
	applog.Audit(c, "subscriptions.brand", map[string]any{"brand": body.BrandID, "user": sub.UserID})
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// POST /api/v1/products/:id/subscriptions
func (h *SubscriptionHandler) SubscribeProduct(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "product", nil)
	}
	var body contactBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "body", nil)
	}
	if !body.contact() {
		return badRequest(c, "contact", nil)
	}
	sub, err := h.Subs.SubscribeProduct(c.UserContext(), body.Email, body.Phone, id)
	if err != nil {
		return fail(c, "subscriptions.product.fail", err, map[string]any{"product": id})
	}
	applog.Audit(c, "subscriptions.product", map[string]any{"product": id, "user": sub.UserID})
	return c.Status(fiber.StatusCreated).JSON(sub)
}
