package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var managedKeys = []string{
	"SLOTBOOKING_HTTP_PORT",
	"SLOTBOOKING_CORS_ORIGINS",
	"SLOTBOOKING_DB_DRIVER",
	"SLOTBOOKING_DB_DSN",
	"SLOTBOOKING_HOLD_TTL",
	"SLOTBOOKING_SWEEP_INTERVAL",
	"SLOTBOOKING_TIMEZONE",
	"SLOTBOOKING_CHANCE_BASELINE",
	"SLOTBOOKING_CHANCE_RESET_SCHEDULE",
	"SLOTBOOKING_JWT_SECRET",
	"SLOTBOOKING_NOTIFY_WORKERS",
	"SLOTBOOKING_GRAPH_TENANT_ID",
}

// clearEnv unsets every managed key and restores it when the test ends.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SLOTBOOKING_JWT_SECRET", "super-secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.DBDriver != "sqlite" {
			t.Fatalf("expected sqlite driver, got %q", cfg.DBDriver)
		}
		if cfg.HoldTTL != 30*time.Second {
			t.Fatalf("expected 30s hold TTL, got %s", cfg.HoldTTL)
		}
		if cfg.SweepInterval != time.Second {
			t.Fatalf("expected 1s sweep interval, got %s", cfg.SweepInterval)
		}
		if cfg.ChanceBaseline != 3 {
			t.Fatalf("expected baseline 3, got %d", cfg.ChanceBaseline)
		}
		if cfg.ChanceResetSchedule != "0 8 * * *" {
			t.Fatalf("unexpected reset schedule %q", cfg.ChanceResetSchedule)
		}
		loc, err := cfg.Location()
		if err != nil {
			t.Fatalf("default timezone did not load: %v", err)
		}
		if loc.String() != "Asia/Kolkata" {
			t.Fatalf("expected Asia/Kolkata, got %s", loc)
		}
		if cfg.GraphConfigured() {
			t.Fatalf("graph should not be configured by default")
		}
	})

	t.Run("errors when the jwt secret is missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: SLOTBOOKING_JWT_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses durations lists and numbers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SLOTBOOKING_JWT_SECRET", "secret-value")
		t.Setenv("SLOTBOOKING_HTTP_PORT", "9090")
		t.Setenv("SLOTBOOKING_DB_DRIVER", "Postgres")
		t.Setenv("SLOTBOOKING_HOLD_TTL", "2m")
		t.Setenv("SLOTBOOKING_CORS_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("SLOTBOOKING_CHANCE_BASELINE", "5")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.DBDriver != "postgres" {
			t.Fatalf("expected driver to be lower cased, got %q", cfg.DBDriver)
		}
		if cfg.HoldTTL != 2*time.Minute {
			t.Fatalf("expected hold TTL 2m, got %s", cfg.HoldTTL)
		}
		if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
			t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
		}
		if cfg.ChanceBaseline != 5 {
			t.Fatalf("expected baseline 5, got %d", cfg.ChanceBaseline)
		}
	})

	t.Run("reports every invalid variable", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SLOTBOOKING_JWT_SECRET", "secret-value")
		t.Setenv("SLOTBOOKING_DB_DRIVER", "mysql")
		t.Setenv("SLOTBOOKING_TIMEZONE", "Mars/Olympus")
		t.Setenv("SLOTBOOKING_CHANCE_RESET_SCHEDULE", "every morning")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"SLOTBOOKING_DB_DRIVER", "SLOTBOOKING_TIMEZONE", "SLOTBOOKING_CHANCE_RESET_SCHEDULE"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})

	t.Run("rejects malformed durations", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SLOTBOOKING_JWT_SECRET", "secret-value")
		t.Setenv("SLOTBOOKING_HOLD_TTL", "soon")

		if _, err := Load(); err == nil {
			t.Fatalf("expected parse error for malformed duration")
		}
	})

	t.Run("reads dotenv files without overriding the environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), ".env")
		content := "SLOTBOOKING_JWT_SECRET=from-file\nSLOTBOOKING_HTTP_PORT=7070\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write dotenv: %v", err)
		}
		t.Setenv("SLOTBOOKING_HTTP_PORT", "6060")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.JWTSecret != "from-file" {
			t.Fatalf("expected secret from dotenv, got %q", cfg.JWTSecret)
		}
		if cfg.HTTPPort != 6060 {
			t.Fatalf("expected environment to win, got %d", cfg.HTTPPort)
		}
		t.Cleanup(func() { os.Unsetenv("SLOTBOOKING_JWT_SECRET") })
	})

	t.Run("ignores missing dotenv files", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SLOTBOOKING_JWT_SECRET", "secret-value")

		if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Fatalf("missing dotenv should be ignored: %v", err)
		}
	})
}
