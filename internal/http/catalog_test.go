package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchastock/internal/domain"
	"matchastock/internal/http/handlers"
	"matchastock/internal/services"
)

func TestBrands(t *testing.T) {
	a := newTestApp(t, handlers.AppConfig{})
	b, _, _ := a.seed(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/brands", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Brands []domain.Brand `json:"brands"`
	}
	decode(t, body, &list)
	require.Len(t, list.Brands, 1)
	assert.Equal(t, "ippodo-tea", list.Brands[0].ID)

	resp, body = a.do(t, http.MethodGet, "/api/v1/brands/"+b.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got domain.Brand
	decode(t, body, &got)
	assert.Equal(t, "Ippodo Tea", got.Name)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/brands/sazen-tea", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProducts_StockFilter(t *testing.T) {
	a := newTestApp(t, handlers.AppConfig{})
	b, _, _ := a.seed(t)

	var list struct {
		Products []domain.ProductStock `json:"products"`
		Count    int                   `json:"count"`
	}
	resp, body := a.do(t, http.MethodGet, "/api/v1/products?brand="+b.ID+"&stock=in", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Sayaka 40g", list.Products[0].Name)
	require.NotNil(t, list.Products[0].InStock)
	assert.True(t, *list.Products[0].InStock)

	resp, body = a.do(t, http.MethodGet, "/api/v1/products?stock=out", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Ummon 20g", list.Products[0].Name)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/products?stock=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductDetail(t *testing.T) {
	a := newTestApp(t, handlers.AppConfig{})
	_, sayaka, _ := a.seed(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/products/"+sayaka.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d services.ProductDetail
	decode(t, body, &d)
	assert.Equal(t, "Ippodo Tea", d.BrandName)
	assert.NotEmpty(t, d.LastCheckedAt)
	require.Len(t, d.History, 2)
	assert.True(t, d.History[0].InStock, "newest first")

	resp, _ = a.do(t, http.MethodGet, "/api/v1/products/no-such-product", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = a.do(t, http.MethodGet, "/api/v1/products/bad%20id", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
