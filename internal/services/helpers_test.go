package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"matchastock/internal/clock"
	"matchastock/internal/domain"
	"matchastock/internal/notify"
	"matchastock/internal/repos"
	"matchastock/internal/services"
	"matchastock/internal/unsubscribe"
)

const testSecret = "test-secret"

type env struct {
	db       *sqlx.DB
	clk      *clock.FakeClock
	brands   *repos.BrandRepo
	products *repos.ProductRepo
	ledger   *repos.StockRepo
	users    *repos.UserRepo
	subs     *repos.SubscriptionRepo
	sender   *notify.Memory
	signer   *unsubscribe.Signer

	reconcile *services.ReconcileService
	dispatch  *services.DispatchService
	subscribe *services.SubscriptionService
	catalog   *services.CatalogService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{db: db, clk: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)), sender: &notify.Memory{}}
	e.brands = repos.NewBrandRepo(db, e.clk)
	e.products = repos.NewProductRepo(db, e.clk)
	e.ledger = repos.NewStockRepo(db, e.clk)
	e.users = repos.NewUserRepo(db, e.clk)
	e.subs = repos.NewSubscriptionRepo(db, e.clk)
	e.signer = unsubscribe.NewSigner(testSecret, "https://stock.example.com", e.clk)

	e.reconcile = services.NewReconcileService(e.products, e.ledger, nil)
	e.dispatch = services.NewDispatchService(e.brands, e.subs, e.sender, e.signer, e.clk, nil)
	e.subscribe = services.NewSubscriptionService(e.users, e.brands, e.products, e.subs, e.dispatch, e.signer, nil)
	e.catalog = services.NewCatalogService(e.brands, e.products, e.ledger)
	return e
}

func (e *env) brand(t *testing.T, name string) domain.Brand {
	t.Helper()
	b, err := e.brands.Ensure(context.Background(), name, "")
	require.NoError(t, err)
	return b
}

func (e *env) product(t *testing.T, brandID, name string, inStock *bool) domain.Product {
	t.Helper()
	ctx := context.Background()
	p, _, err := e.products.Upsert(ctx, brandID, domain.ScrapedItem{Name: name, Price: f64p(28), URL: "https://shop.example/products/" + name})
	require.NoError(t, err)
	if inStock != nil {
		_, err = e.ledger.Append(ctx, p.ID, *inStock)
		require.NoError(t, err)
	}
	return p
}

// follower registers a user subscribed to brandID and returns the user.
func (e *env) follower(t *testing.T, brandID string, email, phone *string) domain.User {
	t.Helper()
	ctx := context.Background()
	u, _, err := e.users.Upsert(ctx, email, phone)
	require.NoError(t, err)
	_, _, err = e.subs.UpsertBrand(ctx, u.ID, brandID)
	require.NoError(t, err)
	return u
}

func (e *env) observations(t *testing.T, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT count(*) FROM stock_observations WHERE product_id = ?`, productID))
	return n
}

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }
func boolp(b bool) *bool      { return &b }

func recipients(msgs []notify.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Recipient)
	}
	return out
}
