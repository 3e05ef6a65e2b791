package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/jmoiron/sqlx"

	"matchastock/internal/clock"
	"matchastock/internal/domain"
)

type BrandRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

func NewBrandRepo(db *sqlx.DB, clk clock.Clock) *BrandRepo {
	return &BrandRepo{db: db, clk: clk}
}

// BrandID derives the stable identifier of a brand from its display name.
func BrandID(name string) string { return slug.Make(name) }

// Ensure creates the brand when missing. An existing brand keeps its name;
// a non-empty website replaces the stored one.
func (r *BrandRepo) Ensure(ctx context.Context, name, website string) (domain.Brand, error) {
	id := BrandID(name)
	if id == "" {
		return domain.Brand{}, fmt.Errorf("brand %q: empty identifier", name)
	}
	_, err := r.db.ExecContext(ctx, `
	  INSERT INTO brands(id, name, website, created_at)
	  VALUES(?, ?, ?, ?)
	  ON CONFLICT(id) DO UPDATE SET
	    website = CASE WHEN excluded.website <> '' THEN excluded.website ELSE brands.website END
	`, id, name, website, clock.Stamp(r.clk.Now()))
	if err != nil {
		return domain.Brand{}, fmt.Errorf("ensure brand %q: %w", name, err)
	}
	return r.Get(ctx, id)
}

func (r *BrandRepo) Get(ctx context.Context, id string) (domain.Brand, error) {
	var b domain.Brand
	err := r.db.GetContext(ctx, &b, `SELECT id, name, website, created_at FROM brands WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return b, domain.ErrNotFound
	}
	return b, err
}

func (r *BrandRepo) List(ctx context.Context) ([]domain.Brand, error) {
	out := []domain.Brand{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, name, website, created_at FROM brands ORDER BY name`)
	return out, err
}
