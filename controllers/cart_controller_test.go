package controllers_test

import (
	"net/http"
	"testing"

	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartQuoteResponse struct {
	Items []struct {
		ProductID   uint    `json:"product_id"`
		ProductName string  `json:"product_name"`
		Image       string  `json:"image"`
		Quantity    int     `json:"quantity"`
		UnitPrice   float64 `json:"unit_price"`
		LineTotal   float64 `json:"line_total"`
		InStock     bool    `json:"in_stock"`
	} `json:"items"`
	Subtotal       float64             `json:"subtotal"`
	DiscountAmount float64             `json:"discount_amount"`
	Total          float64             `json:"total"`
	Promotion      *validationResponse `json:"promotion"`
}

func TestQuoteCart(t *testing.T) {
	env := newTestEnv(t)
	table := testutil.CreateProduct(t, env.db, env.admin.ID, "Farmhouse Table", 1299.99)
	chair := testutil.CreateProduct(t, env.db, env.admin.ID, "Windsor Chair", 189.95)
	testutil.CreateWelcomePromotion(t, env.db, env.admin.ID)

	cart := []map[string]interface{}{
		{"product_id": table.ID, "quantity": 1},
		{"product_id": chair.ID, "quantity": 6},
	}

	t.Run("anonymous quote", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/cart/quote", map[string]interface{}{"items": cart}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var quote cartQuoteResponse
		decodeData(t, w, &quote)
		require.Len(t, quote.Items, 2)
		assert.Equal(t, 1139.7, quote.Items[1].LineTotal)
		assert.True(t, quote.Items[0].InStock)
		assert.False(t, quote.Items[1].InStock, "only five chairs in stock")
		assert.Equal(t, table.PrimaryImage(), quote.Items[0].Image)
		assert.Equal(t, 2439.69, quote.Subtotal)
		assert.Equal(t, 2439.69, quote.Total)
		assert.Nil(t, quote.Promotion)
	})

	t.Run("promotion needs a session", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/cart/quote", map[string]interface{}{"items": cart, "promotion_code": "WELCOME10"}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var quote cartQuoteResponse
		decodeData(t, w, &quote)
		require.NotNil(t, quote.Promotion)
		assert.False(t, quote.Promotion.IsValid)
		assert.Equal(t, "Sign in to apply a promotion code", quote.Promotion.Error)
		assert.Equal(t, quote.Subtotal, quote.Total)
	})

	t.Run("signed in with promotion", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/cart/quote", map[string]interface{}{"items": cart, "promotion_code": "WELCOME10"}, &env.customer)
		require.Equal(t, http.StatusOK, w.Code)

		var quote cartQuoteResponse
		decodeData(t, w, &quote)
		require.NotNil(t, quote.Promotion)
		assert.True(t, quote.Promotion.IsValid)
		assert.Equal(t, 200.0, quote.DiscountAmount)
		assert.Equal(t, 2239.69, quote.Total)
	})

	t.Run("invalid promotion leaves the total alone", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/cart/quote", map[string]interface{}{"items": cart, "promotion_code": "BOGUS"}, &env.customer)
		require.Equal(t, http.StatusOK, w.Code)

		var quote cartQuoteResponse
		decodeData(t, w, &quote)
		require.NotNil(t, quote.Promotion)
		assert.False(t, quote.Promotion.IsValid)
		assert.Zero(t, quote.DiscountAmount)
		assert.Equal(t, 2439.69, quote.Total)
	})

	t.Run("unknown product", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/cart/quote", map[string]interface{}{
			"items": []map[string]interface{}{{"product_id": 9999, "quantity": 1}},
		}, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PRODUCT_NOT_FOUND", decode(t, w).Error.Code)
	})

	t.Run("empty cart", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/cart/quote", map[string]interface{}{"items": []interface{}{}}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("quote does not create orders", func(t *testing.T) {
		var count int64
		require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}
