package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"matchastock/internal/clock"
	"matchastock/internal/domain"
)

const productColumns = `
    p.id, p.brand_id, p.name, p.kind, p.weight, p.price, p.image_url, p.url,
    p.content_hash, p.last_checked_at, p.created_at, p.updated_at`

// productStockQuery joins each product with its brand and the most recent
// ledger entry. Current stock is never stored on the product row.
const productStockQuery = `
  SELECT` + productColumns + `,
    b.name AS brand_name,
    (SELECT so.in_stock FROM stock_observations so
       WHERE so.product_id = p.id ORDER BY so.seq DESC LIMIT 1) AS in_stock,
    COALESCE((SELECT so.observed_at FROM stock_observations so
       WHERE so.product_id = p.id ORDER BY so.seq DESC LIMIT 1), '') AS last_changed
  FROM products p
  JOIN brands b ON b.id = p.brand_id`

type ProductRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

func NewProductRepo(db *sqlx.DB, clk clock.Clock) *ProductRepo {
	return &ProductRepo{db: db, clk: clk}
}

func (r *ProductRepo) getOne(ctx context.Context, where string, args ...any) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT`+productColumns+` FROM products p WHERE `+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.ErrNotFound
	}
	return p, err
}

func (r *ProductRepo) FindByBrandAndName(ctx context.Context, brandID, name string) (domain.Product, error) {
	return r.getOne(ctx, `p.brand_id = ? AND p.name = ?`, brandID, name)
}

// FindMonitor looks up a collection monitor by the listing page it watches.
func (r *ProductRepo) FindMonitor(ctx context.Context, brandID, url string) (domain.Product, error) {
	return r.getOne(ctx, `p.brand_id = ? AND p.url = ? AND p.kind = ?`, brandID, url, domain.KindCollectionMonitor)
}

// Create inserts a product. A row already holding (brand_id, name) yields
// domain.ErrConflict.
func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	now := clock.Stamp(r.clk.Now())
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Kind == "" {
		p.Kind = domain.KindSingleSKU
	}
	p.CreatedAt, p.UpdatedAt, p.LastCheckedAt = now, now, now
	res, err := r.db.NamedExecContext(ctx, `
	  INSERT INTO products(id, brand_id, name, kind, weight, price, image_url, url,
	                       content_hash, last_checked_at, created_at, updated_at)
	  VALUES(:id, :brand_id, :name, :kind, :weight, :price, :image_url, :url,
	         :content_hash, :last_checked_at, :created_at, :updated_at)
	  ON CONFLICT(brand_id, name) DO NOTHING
	`, p)
	if err != nil {
		return fmt.Errorf("insert product %q: %w", p.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Upsert finds the product of item by (brandID, name), creating it when
// missing and otherwise overwriting its scraped attributes. A concurrent
// create of the same key is resolved by updating the winner's row.
func (r *ProductRepo) Upsert(ctx context.Context, brandID string, item domain.ScrapedItem) (domain.Product, bool, error) {
	p, err := r.FindByBrandAndName(ctx, brandID, item.Name)
	switch {
	case err == nil:
		return p, false, r.UpdateScraped(ctx, &p, item)
	case !errors.Is(err, domain.ErrNotFound):
		return p, false, err
	}

	p = domain.Product{
		BrandID:  brandID,
		Name:     item.Name,
		Kind:     item.Kind,
		Weight:   item.Weight,
		Price:    item.Price,
		ImageURL: item.ImageURL,
		URL:      item.URL,
	}
	err = r.Create(ctx, &p)
	if errors.Is(err, domain.ErrConflict) {
		if p, err = r.FindByBrandAndName(ctx, brandID, item.Name); err != nil {
			return p, false, err
		}
		return p, false, r.UpdateScraped(ctx, &p, item)
	}
	return p, err == nil, err
}

// UpdateScraped overwrites the mutable attributes with freshly scraped
// values and refreshes last_checked_at.
func (r *ProductRepo) UpdateScraped(ctx context.Context, p *domain.Product, item domain.ScrapedItem) error {
	now := clock.Stamp(r.clk.Now())
	p.Weight, p.Price, p.ImageURL, p.URL = item.Weight, item.Price, item.ImageURL, item.URL
	p.LastCheckedAt, p.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
	  UPDATE products
	  SET weight = ?, price = ?, image_url = ?, url = ?, last_checked_at = ?, updated_at = ?
	  WHERE id = ?
	`, p.Weight, p.Price, p.ImageURL, p.URL, now, now, p.ID)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepo) SetContentHash(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE products SET content_hash = ?, updated_at = ? WHERE id = ?`,
		hash, clock.Stamp(r.clk.Now()), id)
	return err
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.ProductStock, error) {
	var ps domain.ProductStock
	err := r.db.GetContext(ctx, &ps, productStockQuery+` WHERE p.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ps, domain.ErrNotFound
	}
	return ps, err
}

type StockFilter string

const (
	StockAny StockFilter = ""
	StockIn  StockFilter = "in"
	StockOut StockFilter = "out"
)

type ProductFilter struct {
	BrandID string
	Stock   StockFilter
	Limit   int
	Offset  int
}

// List returns products with their derived stock state, ordered by brand and
// name.
func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]domain.ProductStock, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("*").From("(" + productStockQuery + ") AS ps")
	if f.BrandID != "" {
		sb.Where(sb.Equal("ps.brand_id", f.BrandID))
	}
	switch f.Stock {
	case StockIn:
		sb.Where(sb.Equal("ps.in_stock", 1))
	case StockOut:
		sb.Where(sb.Equal("ps.in_stock", 0))
	}
	sb.OrderBy("ps.brand_name", "ps.name")
	if f.Limit > 0 {
		sb.Limit(f.Limit).Offset(f.Offset)
	}
	query, args := sb.Build()

	out := []domain.ProductStock{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}
