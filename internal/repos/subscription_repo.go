package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"matchastock/internal/clock"
	"matchastock/internal/domain"
)

// SubscriptionRepo stores brand and product opt-ins. Unsubscribing flips
// active to false; rows are never deleted.
type SubscriptionRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

func NewSubscriptionRepo(db *sqlx.DB, clk clock.Clock) *SubscriptionRepo {
	return &SubscriptionRepo{db: db, clk: clk}
}

// UpsertBrand activates the (user, brand) subscription. changed reports
// whether a row was created or reactivated.
func (r *SubscriptionRepo) UpsertBrand(ctx context.Context, userID, brandID string) (sub domain.BrandSubscription, changed bool, err error) {
	changed, err = r.upsert(ctx, "brand_subscriptions", "brand_id", userID, brandID)
	if err != nil {
		return sub, false, err
	}
	err = r.db.GetContext(ctx, &sub, `
	  SELECT id, user_id, brand_id, active, created_at, updated_at
	  FROM brand_subscriptions WHERE user_id = ? AND brand_id = ?
	`, userID, brandID)
	return sub, changed, err
}

func (r *SubscriptionRepo) UpsertProduct(ctx context.Context, userID, productID string) (sub domain.ProductSubscription, changed bool, err error) {
	changed, err = r.upsert(ctx, "product_subscriptions", "product_id", userID, productID)
	if err != nil {
		return sub, false, err
	}
	err = r.db.GetContext(ctx, &sub, `
	  SELECT id, user_id, product_id, active, created_at, updated_at
	  FROM product_subscriptions WHERE user_id = ? AND product_id = ?
	`, userID, productID)
	return sub, changed, err
}

func (r *SubscriptionRepo) upsert(ctx context.Context, table, col, userID, targetID string) (bool, error) {
	now := clock.Stamp(r.clk.Now())
	res, err := r.db.ExecContext(ctx, `
	  INSERT INTO `+table+`(id, user_id, `+col+`, active, created_at, updated_at)
	  VALUES(?, ?, ?, 1, ?, ?)
	  ON CONFLICT(user_id, `+col+`) DO UPDATE SET active = 1, updated_at = excluded.updated_at
	  WHERE `+table+`.active = 0
	`, uuid.NewString(), userID, targetID, now, now)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ActiveBrandSubscribers resolves the active subscriptions of a brand to
// their contact channels.
func (r *SubscriptionRepo) ActiveBrandSubscribers(ctx context.Context, brandID string) ([]domain.Subscriber, error) {
	out := []domain.Subscriber{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT u.id AS user_id, u.email, u.phone, '' AS product_id
	  FROM brand_subscriptions s
	  JOIN users u ON u.id = s.user_id
	  WHERE s.brand_id = ? AND s.active = 1
	  ORDER BY s.created_at, u.id
	`, brandID)
	return out, err
}

// ActiveProductSubscribers returns one row per active (user, product) pair
// among productIDs.
func (r *SubscriptionRepo) ActiveProductSubscribers(ctx context.Context, productIDs []string) ([]domain.Subscriber, error) {
	out := []domain.Subscriber{}
	if len(productIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
	  SELECT u.id AS user_id, u.email, u.phone, s.product_id
	  FROM product_subscriptions s
	  JOIN users u ON u.id = s.user_id
	  WHERE s.product_id IN (?) AND s.active = 1
	  ORDER BY s.created_at, u.id
	`, productIDs)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...)
	return out, err
}

func (r *SubscriptionRepo) DeactivateBrand(ctx context.Context, userID, brandID string) (int64, error) {
	return r.deactivate(ctx, `UPDATE brand_subscriptions SET active = 0, updated_at = ?
	  WHERE user_id = ? AND brand_id = ? AND active = 1`, userID, brandID)
}

func (r *SubscriptionRepo) DeactivateProduct(ctx context.Context, userID, productID string) (int64, error) {
	return r.deactivate(ctx, `UPDATE product_subscriptions SET active = 0, updated_at = ?
	  WHERE user_id = ? AND product_id = ? AND active = 1`, userID, productID)
}

// DeactivateAll turns off every brand and product subscription of a user.
func (r *SubscriptionRepo) DeactivateAll(ctx context.Context, userID string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := clock.Stamp(r.clk.Now())
	var total int64
	for _, table := range []string{"brand_subscriptions", "product_subscriptions"} {
		res, err := tx.ExecContext(ctx, `UPDATE `+table+` SET active = 0, updated_at = ? WHERE user_id = ? AND active = 1`, now, userID)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}

func (r *SubscriptionRepo) deactivate(ctx context.Context, q string, userID, targetID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, q, clock.Stamp(r.clk.Now()), userID, targetID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
