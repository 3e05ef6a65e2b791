package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchastock/internal/domain"
	"matchastock/internal/extract"
)

func TestReconcile_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "MatchaJP - Koyamaen")

	items := []domain.ScrapedItem{
		{Name: "Koyamaen Wako 40g", Price: f64p(19), InStock: true},
		{Name: "Koyamaen Isuzu 100g", Price: f64p(45), InStock: false},
	}

	first, err := e.reconcile.Reconcile(ctx, b.ID, items)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 2, first.Appended)
	require.Len(t, first.Restocked, 1, "first sight in stock counts as a restock")
	assert.Equal(t, "Koyamaen Wako 40g", first.Restocked[0].Name)

	second, err := e.reconcile.Reconcile(ctx, b.ID, items)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 0, second.Appended)
	assert.Empty(t, second.Restocked)

	var products, obs int
	require.NoError(t, e.db.Get(&products, `SELECT count(*) FROM products`))
	require.NoError(t, e.db.Get(&obs, `SELECT count(*) FROM stock_observations`))
	assert.Equal(t, 2, products)
	assert.Equal(t, 2, obs)
}

func TestReconcile_RecordsTransitionsOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Ippodo Tea")
	p := e.product(t, b.ID, "Ummon", boolp(true))

	res, err := e.reconcile.Reconcile(ctx, b.ID, []domain.ScrapedItem{{Name: "Ummon", InStock: false}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Empty(t, res.Restocked, "stockouts never notify")

	res, err = e.reconcile.Reconcile(ctx, b.ID, []domain.ScrapedItem{{Name: "Ummon", InStock: false}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Appended)

	res, err = e.reconcile.Reconcile(ctx, b.ID, []domain.ScrapedItem{{Name: "Ummon", InStock: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Len(t, res.Restocked, 1)

	assert.Equal(t, 3, e.observations(t, p.ID))
	latest, ok, err := e.ledger.Latest(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.InStock)
}

func TestReconcile_SayakaRestock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ippodo := e.brand(t, "Ippodo Tea")
	sazen := e.brand(t, "Sazen Tea")
	sayaka := e.product(t, ippodo.ID, "Sayaka", boolp(false))

	e.follower(t, ippodo.ID, strp("a@b.com"), nil)
	e.follower(t, ippodo.ID, nil, strp("+15551230000"))
	e.follower(t, sazen.ID, strp("sazen-only@b.com"), nil)

	res, err := e.reconcile.Reconcile(ctx, ippodo.ID, []domain.ScrapedItem{{Name: "Sayaka", InStock: true, Price: f64p(32)}})
	require.NoError(t, err)
	require.Len(t, res.Restocked, 1)

	got, err := e.products.Get(ctx, sayaka.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.Equal(t, 32.0, *got.Price)
	require.NotNil(t, got.InStock)
	assert.True(t, *got.InStock)
	assert.Equal(t, 2, e.observations(t, sayaka.ID))

	n, err := e.dispatch.OnRestock(ctx, ippodo.ID, res.Restocked)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"a@b.com", "+15551230000"}, recipients(e.sender.Messages()))
}

func TestReconcile_BadItemDoesNotStopOthers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Ippodo Tea")

	res, err := e.reconcile.Reconcile(ctx, b.ID, []domain.ScrapedItem{
		{Name: "Sayaka", InStock: true},
		{Name: "Broken", Price: f64p(-1), InStock: true},
		{Name: "Ummon", InStock: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken")
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Restocked, 2)
}

func TestReconcile_CollectionMonitor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Sazen Tea")
	const u = "https://www.sazentea.com/en/products/c22-ceremonial-grade-matcha"
	item := func(content string) []domain.ScrapedItem {
		return []domain.ScrapedItem{{
			Name:        "Ceremonial Grade Matcha Collection",
			URL:         u,
			Kind:        domain.KindCollectionMonitor,
			ContentHash: extract.Digest(content),
		}}
	}

	res, err := e.reconcile.Reconcile(ctx, b.ID, item("tenju ogurayama"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Appended, "baseline observation")
	assert.Empty(t, res.Restocked)

	res, err = e.reconcile.Reconcile(ctx, b.ID, item("tenju ogurayama"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Appended)

	res, err = e.reconcile.Reconcile(ctx, b.ID, item("tenju ogurayama unkaku"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	require.Len(t, res.Restocked, 1)

	res, err = e.reconcile.Reconcile(ctx, b.ID, item("tenju unkaku"))
	require.NoError(t, err)
	assert.Len(t, res.Restocked, 1, "every content change is an event")

	res, err = e.reconcile.Reconcile(ctx, b.ID, item("tenju unkaku"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended, "unchanged content falls back to out of stock")
	assert.Empty(t, res.Restocked)

	p, err := e.products.FindMonitor(ctx, b.ID, u)
	require.NoError(t, err)
	assert.Equal(t, extract.Digest("tenju unkaku"), p.ContentHash)
	assert.Equal(t, domain.KindCollectionMonitor, p.Kind)
	assert.Equal(t, 4, e.observations(t, p.ID))
}
