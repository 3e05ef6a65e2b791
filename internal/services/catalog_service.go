package services

import (
	"context"

	"matchastock/internal/domain"
	"matchastock/internal/repos"
)

type CatalogService struct {
	Brands   *repos.BrandRepo
	Products *repos.ProductRepo
	Ledger   *repos.StockRepo
}

func NewCatalogService(brands *repos.BrandRepo, products *repos.ProductRepo, ledger *repos.StockRepo) *CatalogService {
	return &CatalogService{Brands: brands, Products: products, Ledger: ledger}
}

func (s *CatalogService) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	return s.Brands.List(ctx)
}

func (s *CatalogService) GetBrand(ctx context.Context, id string) (domain.Brand, error) {
	return s.Brands.Get(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, brandID string, stock repos.StockFilter, page, pageSize int) ([]domain.ProductStock, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return s.Products.List(ctx, repos.ProductFilter{
		BrandID: brandID,
		Stock:   stock,
		Limit:   pageSize,
		Offset:  (page - 1) * pageSize,
	})
}

type ProductDetail struct {
	domain.ProductStock
	History []domain.StockObservation `json:"history"`
}

// GetProduct returns the product, its derived stock state and up to
// historyLimit recent ledger entries.
func (s *CatalogService) GetProduct(ctx context.Context, id string, historyLimit int) (ProductDetail, error) {
	p, err := s.Products.Get(ctx, id)
	if err != nil {
		return ProductDetail{}, err
	}
	hist, err := s.Ledger.History(ctx, id, historyLimit)
	if err != nil {
		return ProductDetail{}, err
	}
	return ProductDetail{ProductStock: p, History: hist}, nil
}
