package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "creates customer account",
			body:           map[string]interface{}{"name": "Jane Doe", "email": "Jane@Example.com", "password": "secret1"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "rejects short password",
			body:           map[string]interface{}{"name": "Short", "email": "short@example.com", "password": "12345"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "PASSWORD_TOO_SHORT",
		},
		{
			name:           "rejects password bcrypt cannot hash",
			body:           map[string]interface{}{"name": "Long", "email": "long@example.com", "password": strings.Repeat("x", 80)},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "PASSWORD_TOO_LONG",
		},
		{
			name:           "rejects existing email",
			body:           map[string]interface{}{"name": "John Again", "email": "john@example.com", "password": "secret1"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "USER_EXISTS",
		},
		{
			name:           "rejects missing fields",
			body:           map[string]interface{}{"email": "nobody@example.com"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "rejects invalid email",
			body:           map[string]interface{}{"name": "Bad", "email": "not-an-email", "password": "secret1"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.mailer.Clear()
			w := env.request(t, http.MethodPost, "/api/auth/register", tt.body, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decode(t, w).Error.Code)
				assert.Empty(t, env.mailer.Sent())
				return
			}

			var user models.User
			decodeData(t, w, &user)
			assert.Equal(t, "jane@example.com", user.Email)
			assert.Equal(t, models.RoleUser, user.Role)
			assert.NotContains(t, w.Body.String(), "password")

			sent := env.mailer.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, []string{"jane@example.com"}, sent[0].To)
			assert.Contains(t, sent[0].Text, "WELCOME10")
		})
	}

	t.Run("short password is rejected before any write", func(t *testing.T) {
		var count int64
		require.NoError(t, env.db.Model(&models.User{}).Where("email = ?", "short@example.com").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("returns token and cookie", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/auth/login",
			map[string]string{"email": "JOHN@example.com", "password": testutil.DefaultPassword}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var data struct {
			Token string      `json:"token"`
			User  models.User `json:"user"`
		}
		decodeData(t, w, &data)
		assert.NotEmpty(t, data.Token)
		assert.Equal(t, env.customer.ID, data.User.ID)

		var cookie *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == middleware.SessionCookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, data.Token, cookie.Value)

		// the issued token opens protected routes
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(cookie)
		me := httptest.NewRecorder()
		env.router.ServeHTTP(me, req)
		assert.Equal(t, http.StatusOK, me.Code)
		assert.Contains(t, me.Body.String(), "john@example.com")
	})

	t.Run("wrong password", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/auth/login",
			map[string]string{"email": "john@example.com", "password": "wrong-password"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decode(t, w).Error.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/auth/login",
			map[string]string{"email": "ghost@example.com", "password": testutil.DefaultPassword}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decode(t, w).Error.Code)
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/api/auth/me", nil, &env.customer)
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	decodeData(t, w, &user)
	assert.Equal(t, env.customer.Email, user.Email)

	w = env.request(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown email gets the same answer", func(t *testing.T) {
		env.mailer.Clear()
		w := env.request(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "If an account with this email exists")
		assert.Empty(t, env.mailer.Sent())
	})

	env.mailer.Clear()
	w := env.request(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "john@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "If an account with this email exists")

	var stored models.User
	require.NoError(t, env.db.First(&stored, env.customer.ID).Error)
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiry)
	token := *stored.ResetToken
	assert.Len(t, token, 64)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ResetTokenExpiry, time.Minute)

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, env.cfg.AppURL+"/auth/reset-password?token="+token)

	t.Run("rejects short password", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "123"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PASSWORD_TOO_SHORT", decode(t, w).Error.Code)
	})

	t.Run("rejects overlong password", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": strings.Repeat("x", 80)}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PASSWORD_TOO_LONG", decode(t, w).Error.Code)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": strings.Repeat("a", 64), "password": "newpassword"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_RESET_TOKEN", decode(t, w).Error.Code)
	})

	t.Run("resets password and clears token", func(t *testing.T) {
		w := env.request(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "newpassword"}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated models.User
		require.NoError(t, env.db.First(&updated, env.customer.ID).Error)
		assert.Nil(t, updated.ResetToken)
		assert.Nil(t, updated.ResetTokenExpiry)

		login := env.request(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "john@example.com", "password": "newpassword"}, nil)
		assert.Equal(t, http.StatusOK, login.Code)

		reuse := env.request(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "another1"}, nil)
		assert.Equal(t, http.StatusBadRequest, reuse.Code)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		expired := strings.Repeat("b", 64)
		past := time.Now().Add(-time.Minute)
		require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", env.admin.ID).
			Updates(map[string]interface{}{"reset_token": expired, "reset_token_expiry": past}).Error)

		w := env.request(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": expired, "password": "newpassword"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
