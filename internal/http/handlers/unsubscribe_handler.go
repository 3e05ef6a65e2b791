package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"matchastock/internal/domain"
	applog "matchastock/internal/log"
	"matchastock/internal/services"
	"matchastock/internal/unsubscribe"
	"matchastock/internal/validate"
)

type UnsubscribeHandler struct {
	Subs *services.SubscriptionService
}

// GET /api/unsubscribe?email=&token=[&type=brand&brand=id|&type=product&product=id]
// type=product&brand=id is accepted as a product link.
func (h *UnsubscribeHandler) Unsubscribe(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	token := strings.TrimSpace(c.Query("token"))
	if email == "" || token == "" {
		applog.Security(c, "unsubscribe.fail", map[string]any{"reason": "missing_params"})
		return c.Status(fiber.StatusBadRequest).Render("unsubscribed", fiber.Map{
			"Title": "Unsubscribe", "Err": "This unsubscribe link is incomplete.",
		})
	}

	req := services.UnsubscribeRequest{Email: email, Token: token}
	switch unsubscribe.Scope(c.Query("type")) {
	case unsubscribe.ScopeAll:
	case unsubscribe.ScopeBrand:
		id, ok := validate.ID(c.Query("brand"))
		if !ok {
			return badRequestPage(c, "brand")
		}
		req.Scope, req.BrandID = unsubscribe.ScopeBrand, id
	case unsubscribe.ScopeProduct:
		// Older links carry the product id in the brand parameter.
		raw := c.Query("product")
		if raw == "" {
			raw = c.Query("brand")
		}
		id, ok := validate.ID(raw)
		if !ok {
			return badRequestPage(c, "product")
		}
		req.Scope, req.ProductID = unsubscribe.ScopeProduct, id
	default:
		return badRequestPage(c, "type")
	}

	n, err := h.Subs.Unsubscribe(c.UserContext(), req)
	switch {
	case services.IsTokenError(err):
		applog.Security(c, "unsubscribe.fail", map[string]any{"reason": "bad_token", "error": err.Error()})
		return c.Status(fiber.StatusForbidden).Render("unsubscribed", fiber.Map{
			"Title": "Unsubscribe", "Err": "This unsubscribe link is invalid or has expired.",
		})
	case errors.Is(err, domain.ErrNotFound):
		return notFoundPage(c, "We could not find any subscriptions for this address.")
	case err != nil:
		applog.Error(c, "unsubscribe.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
			"Title": "Error", "Message": "Something went wrong. Please try again.",
		})
	}

	applog.Audit(c, "unsubscribe", map[string]any{"type": string(req.Scope), "deactivated": n})
	return render(c, "unsubscribed", fiber.Map{
		"Title":       "Unsubscribed",
		"Email":       email,
		"Scope":       string(req.Scope),
		"Deactivated": n,
	})
}

func badRequestPage(c *fiber.Ctx, field string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).Render("unsubscribed", fiber.Map{
		"Title": "Unsubscribe", "Err": "This unsubscribe link is malformed.",
	})
}
