package controllers_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"github.com/rusticroots/storefront-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache is an in-memory ProductCache that records invalidations
type countingCache struct {
	featured      []models.Product
	warm          bool
	invalidations int
}

func (c *countingCache) GetFeatured(context.Context) ([]models.Product, bool) {
	return c.featured, c.warm
}

func (c *countingCache) SetFeatured(_ context.Context, products []models.Product) error {
	c.featured, c.warm = products, true
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.featured, c.warm = nil, false
	c.invalidations++
	return nil
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	table := testutil.CreateProduct(t, env.db, env.admin.ID, "Farmhouse Table", 1299.99)
	bench := testutil.CreateProduct(t, env.db, env.admin.ID, "Garden Bench", 349)
	require.NoError(t, env.db.Model(&bench).Updates(map[string]interface{}{"category": "outdoor", "featured": true}).Error)

	tests := []struct {
		name    string
		query   string
		wantIDs []uint
		status  int
	}{
		{name: "all products newest first", query: "", wantIDs: []uint{bench.ID, table.ID}, status: http.StatusOK},
		{name: "category filter", query: "?category=tables", wantIDs: []uint{table.ID}, status: http.StatusOK},
		{name: "featured filter", query: "?featured=true", wantIDs: []uint{bench.ID}, status: http.StatusOK},
		{name: "invalid featured filter", query: "?featured=maybe", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(t, http.MethodGet, "/api/products"+tt.query, nil, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}

			var products []models.Product
			decodeData(t, w, &products)
			ids := make([]uint, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
				require.NotNil(t, p.Owner)
				assert.Equal(t, "Shop Admin", p.Owner.Name)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	product := testutil.CreateProduct(t, env.db, env.admin.ID, "Farmhouse Table", 1299.99)

	w := env.request(t, http.MethodGet, fmt.Sprintf("/api/products/%d", product.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Product
	decodeData(t, w, &got)
	assert.Equal(t, "Farmhouse Table", got.Name)
	assert.Equal(t, 1299.99, got.Price)
	assert.NotContains(t, w.Body.String(), "password")

	w = env.request(t, http.MethodGet, "/api/products/9999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decode(t, w).Error.Code)

	w = env.request(t, http.MethodGet, "/api/products/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeaturedProductsCache(t *testing.T) {
	env := newTestEnv(t)
	cache := &countingCache{}
	services.SetProductCache(cache)
	t.Cleanup(func() { services.SetProductCache(services.NoopProductCache{}) })

	product := testutil.CreateProduct(t, env.db, env.admin.ID, "Oak Sideboard", 899)
	require.NoError(t, env.db.Model(&product).Update("featured", true).Error)

	w := env.request(t, http.MethodGet, "/api/products/featured", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = env.request(t, http.MethodGet, "/api/products/featured", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	var products []models.Product
	decodeData(t, w, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Oak Sideboard", products[0].Name)

	w = env.request(t, http.MethodPatch, fmt.Sprintf("/api/products/%d", product.ID), map[string]interface{}{"featured": false}, &env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, cache.invalidations)

	w = env.request(t, http.MethodGet, "/api/products/featured", nil, nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	decodeData(t, w, &products)
	assert.Empty(t, products)
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]interface{}{
		"name":        "Rustic Bookshelf",
		"description": "Five shelves of reclaimed pine",
		"price":       459.994,
		"category":    "storage",
		"stock":       3,
		"images":      []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		"featured":    true,
	}

	t.Run("admin creates product", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/products", body, &env.admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var product models.Product
		decodeData(t, w, &product)
		assert.Equal(t, env.admin.ID, product.OwnerID)
		assert.Equal(t, 459.99, product.Price)
		assert.Equal(t, "https://cdn.example.com/a.jpg", product.PrimaryImage())
	})

	t.Run("customer forbidden", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/products", body, &env.customer)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/products", body, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/products", map[string]interface{}{"price": 10}, &env.admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
	})

	t.Run("negative price", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/products", map[string]interface{}{"name": "Bad", "price": -1}, &env.admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateProduct(t *testing.T) {
	env := newTestEnv(t)
	product := testutil.CreateProduct(t, env.db, env.admin.ID, "Farmhouse Table", 1299.99)

	w := env.request(t, http.MethodPatch, fmt.Sprintf("/api/products/%d", product.ID),
		map[string]interface{}{"price": 1199, "stock": 0}, &env.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Product
	decodeData(t, w, &updated)
	assert.Equal(t, "Farmhouse Table", updated.Name, "omitted fields are kept")
	assert.Equal(t, 1199.0, updated.Price)
	assert.Equal(t, 0, updated.Stock)

	w = env.request(t, http.MethodPatch, "/api/products/9999", map[string]interface{}{"price": 1}, &env.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	product := testutil.CreateProduct(t, env.db, env.admin.ID, "Farmhouse Table", 1299.99)

	w := env.request(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", product.ID), nil, &env.customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.request(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", product.ID), nil, &env.admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, fmt.Sprintf("/api/products/%d", product.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var count int64
	require.NoError(t, env.db.Unscoped().Model(&models.Product{}).Where("id = ?", product.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "product rows are soft deleted")

	w = env.request(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", product.ID), nil, &env.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
