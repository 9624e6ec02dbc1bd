package controllers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rusticroots/storefront-api/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Rustic Roots API is running", resp.Message)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestDatabaseStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/api/database/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Success bool     `json:"success"`
		Tables  []string `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Subset(t, body.Tables, []string{"users", "products", "orders", "order_items", "promotions", "promotion_usages"})
}

func TestDatabaseStatus_ClosedConnection(t *testing.T) {
	env := newTestEnv(t)

	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	t.Cleanup(func() { config.SetDB(nil) })

	w := env.request(t, http.MethodGet, "/api/database/status", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "DATABASE_CONNECTION_ERROR", decode(t, w).Error.Code)
}
