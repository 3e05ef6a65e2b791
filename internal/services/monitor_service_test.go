package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchastock/internal/config"
	"matchastock/internal/domain"
	"matchastock/internal/extract"
	"matchastock/internal/services"
)

const catalogURL = "https://shop.example/collections/matcha"

type fakeFetcher struct {
	calls []string
	fn    func(url string) (string, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	return f.fn(url)
}

type countingNotifier struct {
	inner services.RestockNotifier
	calls int
}

func (n *countingNotifier) OnRestock(ctx context.Context, brandID string, p []domain.RestockedProduct) (int, error) {
	n.calls++
	return n.inner.OnRestock(ctx, brandID, p)
}

func cards(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"grid\">")
	for _, n := range names {
		fmt.Fprintf(&b, `<div class="product-card"><a href="/products/%s">%s</a><span class="price">$20.00</span></div>`,
			strings.ToLower(n), n)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func productPage(name string, inStock bool) string {
	button := `<button type="submit" name="add">Add to cart</button>`
	if !inStock {
		button = `<button type="submit" disabled>Sold out</button>`
	}
	return `<html><head><title>` + name + `</title></head><body><main>` +
		`<h1>` + name + `</h1><span class="price">$32.00</span><form>` + button + `</form></main></body></html>`
}

func (e *env) monitor(f services.PageFetcher, n services.RestockNotifier) *services.MonitorService {
	return services.NewMonitorService(f, extract.NewRegistry(), e.brands, e.reconcile, n, nil)
}

func TestRunCycle_PaginationStopsOnEmptyPage(t *testing.T) {
	e := newEnv(t)
	f := &fakeFetcher{fn: func(u string) (string, error) {
		if u == catalogURL {
			return cards("Wako", "Isuzu"), nil
		}
		return "<html><body></body></html>", nil
	}}
	site := config.Site{Brand: "MatchaJP", Strategy: extract.StrategyCollection, CatalogURL: catalogURL, PageParam: "page", MaxPages: 5}

	rep, err := e.monitor(f, e.dispatch).RunCycle(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, []string{catalogURL, catalogURL + "?page=2"}, f.calls)
	assert.Equal(t, 1, rep.Pages)
	assert.Equal(t, 2, rep.Items)
	assert.Equal(t, 2, rep.Result.Created)
	assert.Equal(t, "matchajp", rep.BrandID)
}

func TestRunCycle_PageFailureEndsPagination(t *testing.T) {
	e := newEnv(t)
	f := &fakeFetcher{fn: func(u string) (string, error) {
		if u == catalogURL {
			return cards("Wako"), nil
		}
		return "", errors.New("connection reset")
	}}
	site := config.Site{Brand: "MatchaJP", Strategy: extract.StrategyCollection, CatalogURL: catalogURL, PageParam: "page", MaxPages: 5}

	rep, err := e.monitor(f, e.dispatch).RunCycle(context.Background(), site)
	require.NoError(t, err)
	assert.Len(t, f.calls, 2)
	assert.Equal(t, 1, rep.Pages)
	assert.Equal(t, 1, rep.PageErrors)
	assert.Equal(t, 1, rep.Items)
}

func TestRunCycle_MaxPagesBound(t *testing.T) {
	e := newEnv(t)
	n := 0
	f := &fakeFetcher{fn: func(string) (string, error) {
		n++
		return cards(fmt.Sprintf("Tea%d", n)), nil
	}}
	site := config.Site{Brand: "MatchaJP", Strategy: extract.StrategyCollection, CatalogURL: catalogURL, PageParam: "page", MaxPages: 3}

	rep, err := e.monitor(f, e.dispatch).RunCycle(context.Background(), site)
	require.NoError(t, err)
	assert.Len(t, f.calls, 3)
	assert.Equal(t, 3, rep.Items)
}

func TestRunCycle_DuplicateNamesAcrossPages(t *testing.T) {
	e := newEnv(t)
	f := &fakeFetcher{fn: func(u string) (string, error) {
		switch u {
		case catalogURL:
			return cards("Wako", "Isuzu"), nil
		case catalogURL + "?page=2":
			return cards("Isuzu", "Ummon"), nil
		}
		return "", nil
	}}
	site := config.Site{Brand: "MatchaJP", Strategy: extract.StrategyCollection, CatalogURL: catalogURL, PageParam: "page", MaxPages: 5}

	rep, err := e.monitor(f, e.dispatch).RunCycle(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Pages)
	assert.Equal(t, 3, rep.Items)
}

func TestRunCycle_ExplicitPagesSkipFailures(t *testing.T) {
	e := newEnv(t)
	pages := []string{"https://ippodo.example/p/sayaka", "https://ippodo.example/p/broken", "https://ippodo.example/p/ummon"}
	f := &fakeFetcher{fn: func(u string) (string, error) {
		switch u {
		case pages[0]:
			return productPage("Sayaka 40g", true), nil
		case pages[2]:
			return productPage("Ummon 20g", false), nil
		}
		return "", errors.New("http 500")
	}}
	site := config.Site{Brand: "Ippodo Tea", Strategy: extract.StrategyProductPage, Pages: pages}

	rep, err := e.monitor(f, e.dispatch).RunCycle(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, pages, f.calls)
	assert.Equal(t, 2, rep.Pages)
	assert.Equal(t, 1, rep.PageErrors)
	assert.Equal(t, 2, rep.Items)
	require.Len(t, rep.Result.Restocked, 1)
	assert.Equal(t, "Sayaka 40g", rep.Result.Restocked[0].Name)
}

func TestRunCycle_MissingStrategy(t *testing.T) {
	e := newEnv(t)
	f := &fakeFetcher{fn: func(string) (string, error) { return "", nil }}
	for _, strategy := range []string{"", "scrapy"} {
		site := config.Site{Brand: "Ippodo Tea", Strategy: strategy, Pages: []string{"https://ippodo.example/p/sayaka"}}
		_, err := e.monitor(f, e.dispatch).RunCycle(context.Background(), site)
		assert.ErrorIs(t, err, domain.ErrConfiguration, strategy)
	}
	assert.Empty(t, f.calls)
}

func TestRunCycle_StateSequence(t *testing.T) {
	e := newEnv(t)
	f := &fakeFetcher{fn: func(string) (string, error) { return productPage("Sayaka 40g", true), nil }}
	m := e.monitor(f, e.dispatch)
	var phases []string
	m.OnState = func(brand string, st services.CycleState) {
		assert.Equal(t, "Ippodo Tea", brand)
		phases = append(phases, fmt.Sprintf("%s:%d", st.Phase, st.Page))
	}
	site := config.Site{Brand: "Ippodo Tea", Strategy: extract.StrategyProductPage, Pages: []string{"https://ippodo.example/p/sayaka"}}

	_, err := m.RunCycle(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, []string{"fetching_page:1", "reconciling:0", "dispatching:0", "idle:0"}, phases)
}

func TestRunCycle_RestockNotifiesOncePerCycle(t *testing.T) {
	e := newEnv(t)
	b := e.brand(t, "Ippodo Tea")
	e.follower(t, b.ID, strp("fan@example.com"), nil)

	stock := map[string]bool{}
	pages := []string{"https://ippodo.example/p/sayaka", "https://ippodo.example/p/ummon"}
	names := map[string]string{pages[0]: "Sayaka 40g", pages[1]: "Ummon 20g"}
	f := &fakeFetcher{fn: func(u string) (string, error) { return productPage(names[u], stock[u]), nil }}
	n := &countingNotifier{inner: e.dispatch}
	m := e.monitor(f, n)
	site := config.Site{Brand: "Ippodo Tea", Strategy: extract.StrategyProductPage, Pages: pages}
	ctx := context.Background()

	rep, err := m.RunCycle(ctx, site)
	require.NoError(t, err)
	assert.Empty(t, rep.Result.Restocked)
	assert.Zero(t, n.calls)

	stock[pages[0]], stock[pages[1]] = true, true
	rep, err = m.RunCycle(ctx, site)
	require.NoError(t, err)
	assert.Len(t, rep.Result.Restocked, 2)
	assert.Equal(t, 1, n.calls)
	assert.Equal(t, 1, rep.Dispatched)
	require.Len(t, e.sender.Messages(), 1)
	assert.Len(t, e.sender.Messages()[0].Data["products"], 2)

	rep, err = m.RunCycle(ctx, site)
	require.NoError(t, err)
	assert.Empty(t, rep.Result.Restocked)
	assert.Equal(t, 1, n.calls)
	assert.Len(t, e.sender.Messages(), 1)
}
