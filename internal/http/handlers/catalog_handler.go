package handlers

import (
	"github.com/gofiber/fiber/v2"

	"matchastock/internal/repos"
	"matchastock/internal/services"
	"matchastock/internal/validate"
)

const (
	defaultPageSize = 50
	historyLimit    = 20
)

type CatalogHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/brands
func (h *CatalogHandler) Brands(c *fiber.Ctx) error {
	brands, err := h.Catalog.ListBrands(c.UserContext())
	if err != nil {
		return fail(c, "brands.list.fail", err, nil)
	}
	return c.JSON(fiber.Map{"brands": brands})
}

// GET /api/v1/brands/:id
func (h *CatalogHandler) Brand(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "brand", nil)
	}
	b, err := h.Catalog.GetBrand(c.UserContext(), id)
	if err != nil {
		return fail(c, "brands.get.fail", err, map[string]any{"brand": id})
	}
	return c.JSON(b)
}

// GET /api/v1/products?brand=&stock=in|out&page=
func (h *CatalogHandler) Products(c *fiber.Ctx) error {
	brand := c.Query("brand")
	if brand != "" {
		var ok bool
		if brand, ok = validate.ID(brand); !ok {
			return badRequest(c, "brand", nil)
		}
	}
	stock, ok := validate.Stock(c.Query("stock"))
	if !ok {
		return badRequest(c, "stock", nil)
	}
	page := validate.Page(c.Query("page"))

	products, err := h.Catalog.ListProducts(c.UserContext(), brand, repos.StockFilter(stock), page, defaultPageSize)
	if err != nil {
		return fail(c, "products.list.fail", err, map[string]any{"brand": brand})
	}
	return c.JSON(fiber.Map{"products": products, "page": page, "count": len(products)})
}

// GET /api/v1/products/:id
func (h *CatalogHandler) Product(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "product", nil)
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id, historyLimit)
	if err != nil {
		return fail(c, "products.get.fail", err, map[string]any{"product": id})
	}
	return c.JSON(p)
}
