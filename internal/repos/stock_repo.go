package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"matchastock/internal/clock"
	"matchastock/internal/domain"
)

// StockRepo is the append-only stock ledger. Rows are never updated or
// deleted; seq orders entries that share a timestamp.
type StockRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

func NewStockRepo(db *sqlx.DB, clk clock.Clock) *StockRepo {
	return &StockRepo{db: db, clk: clk}
}

func (r *StockRepo) Append(ctx context.Context, productID string, inStock bool) (domain.StockObservation, error) {
	obs := domain.StockObservation{
		ID:         uuid.NewString(),
		ProductID:  productID,
		InStock:    inStock,
		ObservedAt: clock.Stamp(r.clk.Now()),
	}
	res, err := r.db.ExecContext(ctx, `
	  INSERT INTO stock_observations(id, product_id, in_stock, observed_at)
	  VALUES(?, ?, ?, ?)
	`, obs.ID, obs.ProductID, obs.InStock, obs.ObservedAt)
	if err != nil {
		return obs, fmt.Errorf("append observation for %s: %w", productID, err)
	}
	obs.Seq, _ = res.LastInsertId()
	return obs, nil
}

// Latest returns the most recent observation of a product. ok is false when
// the product has never been observed.
func (r *StockRepo) Latest(ctx context.Context, productID string) (obs domain.StockObservation, ok bool, err error) {
	err = r.db.GetContext(ctx, &obs, `
	  SELECT seq, id, product_id, in_stock, observed_at
	  FROM stock_observations
	  WHERE product_id = ?
	  ORDER BY seq DESC
	  LIMIT 1
	`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return obs, false, nil
	}
	if err != nil {
		return obs, false, err
	}
	return obs, true, nil
}

// History lists observations newest first. limit <= 0 returns all of them.
func (r *StockRepo) History(ctx context.Context, productID string, limit int) ([]domain.StockObservation, error) {
	if limit <= 0 {
		limit = -1
	}
	out := []domain.StockObservation{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT seq, id, product_id, in_stock, observed_at
	  FROM stock_observations
	  WHERE product_id = ?
	  ORDER BY seq DESC
	  LIMIT ?
	`, productID, limit)
	return out, err
}
