package config

import (
	"fmt"
	"os"
	"testing"
)

// TestMain refuses to run config tests against a non-test environment.
// Load reads .env, so an inherited production DATABASE_URL must never be
// picked up by ConnectDatabase here.
func TestMain(m *testing.M) {
	switch env := os.Getenv("GO_ENV"); env {
	case "":
		os.Setenv("GO_ENV", "test")
	case "test":
	default:
		fmt.Fprintf(os.Stderr, "config tests need GO_ENV=test (got %q); run GO_ENV=test go test ./...\n", env)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
