package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/rusticroots/storefront-api/config"
	"github.com/stretchr/testify/require"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test for the rest of t.
// Use this in suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	t.Setenv("GO_ENV", "test")
	require.Equal(t, "test", os.Getenv("GO_ENV"), "Failed to verify GO_ENV=test")
}

// LoadTestConfig runs config.Load against a test environment built from
// TestConfig, so suites exercise the same loading and validation path as
// the server. The database URL points at an in-memory SQLite database.
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	MustSetTestEnvironment(t)

	want := TestConfig()
	env := map[string]string{
		"DB_DRIVER":             "sqlite",
		"DATABASE_URL":          "file::memory:?cache=shared",
		"APP_URL":               want.AppURL + "/",
		"LOG_LEVEL":             want.LogLevel,
		"SESSION_SECRET":        want.SessionSecret,
		"SESSION_ISSUER":        want.SessionIssuer,
		"SESSION_AUDIENCE":      want.SessionAudience,
		"SESSION_TTL":           want.SessionTTL.String(),
		"SMTP_HOST":             "smtp.therusticroots.test",
		"SMTP_USER":             "mailer@therusticroots.test",
		"SMTP_PASSWORD":         "not-a-real-password",
		"CONTACT_RECIPIENT":     want.ContactRecipient,
		"STORAGE_DRIVER":        want.StorageDriver,
		"AWS_S3_BUCKET":         want.AWSS3Bucket,
		"AWS_REGION":            want.AWSRegion,
		"AWS_ACCESS_KEY_ID":     "test-key",
		"AWS_SECRET_ACCESS_KEY": "test-secret",
		"CORS_ALLOWED_ORIGINS":  "https://therusticroots.test, http://localhost:3000",
		"REDIS_URL":             "",
	}
	for key, value := range env {
		t.Setenv(key, value)
	}

	cfg, err := config.Load()
	require.NoError(t, err, "test configuration should validate")
	require.True(t, cfg.IsTest())
	require.False(t, strings.HasSuffix(cfg.AppURL, "/"))
	return cfg
}
