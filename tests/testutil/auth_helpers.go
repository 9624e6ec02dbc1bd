package testutil

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"github.com/stretchr/testify/require"
)

// TestSessionSecret signs every token issued in tests
const TestSessionSecret = "test-session-secret-with-enough-entropy"

// TestConfig returns a configuration suitable for tests: sqlite, in-process
// storage and mail, short sessions.
func TestConfig() *config.Config {
	return &config.Config{
		DatabaseDriver:   "sqlite",
		GoEnv:            "test",
		Port:             "0",
		AppURL:           "https://therusticroots.test",
		LogLevel:         "error",
		SessionSecret:    TestSessionSecret,
		SessionIssuer:    "rustic-roots-api",
		SessionAudience:  "rustic-roots-storefront",
		SessionTTL:       time.Hour,
		ContactRecipient: "owner@therusticroots.test",
		StorageDriver:    "s3",
		StoragePublicURL: "https://cdn.therusticroots.test",
		AWSS3Bucket:      "test-bucket",
		AWSRegion:        "ap-southeast-2",

		CORSAllowedOrigins: []string{"https://therusticroots.test", "http://localhost:3000"},
	}
}

// SignToken signs claims for user with the test configuration.
// ttl may be negative to produce an expired token.
func SignToken(t *testing.T, cfg *config.Config, user models.User, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(user.ID), 10),
		"iss":   cfg.SessionIssuer,
		"aud":   []string{cfg.SessionAudience},
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"role":  user.Role,
		"email": user.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SessionSecret))
	require.NoError(t, err)
	return signed
}

// BearerHeader formats token for the Authorization header
func BearerHeader(token string) string {
	return fmt.Sprintf("Bearer %s", token)
}

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(user models.User, issuer string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: strconv.FormatUint(uint64(user.ID), 10),
		},
		CustomClaims: &middleware.CustomClaims{
			Role:  user.Role,
			Email: user.Email,
		},
	}
}

// SetMockAuthContext sets up an authenticated context for handlers invoked directly
func SetMockAuthContext(c *gin.Context, user models.User) {
	claims := MockValidatedClaims(user, "rustic-roots-api")
	c.Set(middleware.ContextUserID, claims.RegisteredClaims.Subject)
	c.Set(middleware.ContextClaims, claims)
	c.Set(middleware.ContextCurrentUser, &user)
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
