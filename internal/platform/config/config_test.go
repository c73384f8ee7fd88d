package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"INVENTORY_FIREBASE_PROJECT_ID": "hbgw-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "hbgw-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "hbgw-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Watch.Window != 200 {
		t.Errorf("expected default watch window 200, got %d", cfg.Watch.Window)
	}
	if cfg.Watch.ActivationRetry != 2*time.Second {
		t.Errorf("expected default activation retry 2s, got %s", cfg.Watch.ActivationRetry)
	}
	if cfg.Watch.OrdersCollection != "orders" || cfg.Watch.ProductsCollection != "products" || cfg.Watch.BusinessesCollection != "businesses" {
		t.Errorf("unexpected default collections: %+v", cfg.Watch)
	}
	if cfg.Watch.SellerID != "" {
		t.Errorf("expected no seller attached by default, got %q", cfg.Watch.SellerID)
	}
	if cfg.Events.Topic != "" {
		t.Errorf("expected publishing disabled by default, got topic %q", cfg.Events.Topic)
	}
	if cfg.Environment != "local" {
		t.Errorf("expected default environment local, got %s", cfg.Environment)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"INVENTORY_ENVIRONMENT":               "PROD",
		"INVENTORY_SERVER_PORT":               "9090",
		"INVENTORY_SERVER_WRITE_TIMEOUT":      "25s",
		"INVENTORY_FIREBASE_PROJECT_ID":       "hbgw-prod",
		"INVENTORY_FIREBASE_CREDENTIALS_FILE": "/secrets/sa.json",
		"INVENTORY_FIRESTORE_PROJECT_ID":      "hbgw-db",
		"INVENTORY_WATCH_SELLER_ID":           " seller-1 ",
		"INVENTORY_WATCH_WINDOW":              "50",
		"INVENTORY_WATCH_ACTIVATION_RETRY":    "500ms",
		"INVENTORY_EVENTS_TOPIC":              "inventory-adjustments",
		"INVENTORY_EVENTS_PROJECT_ID":         "hbgw-events",
		"INVENTORY_WATCH_RESUBSCRIBE_DELAY":   "not-a-duration",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Environment != "prod" {
		t.Errorf("expected lower-cased environment, got %s", cfg.Environment)
	}
	if cfg.Server.Port != "9090" || cfg.Server.WriteTimeout != 25*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "hbgw-db" {
		t.Errorf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Firestore.CredentialsFile != "/secrets/sa.json" {
		t.Errorf("expected firestore credentials to follow firebase, got %s", cfg.Firestore.CredentialsFile)
	}
	if cfg.Watch.SellerID != "seller-1" {
		t.Errorf("expected trimmed seller id, got %q", cfg.Watch.SellerID)
	}
	if cfg.Watch.Window != 50 || cfg.Watch.ActivationRetry != 500*time.Millisecond {
		t.Errorf("unexpected watch config: %+v", cfg.Watch)
	}
	if cfg.Watch.ResubscribeDelay != defaultResubscribeDelay {
		t.Errorf("expected invalid duration to fall back to default, got %s", cfg.Watch.ResubscribeDelay)
	}
	if cfg.Events.Topic != "inventory-adjustments" || cfg.Events.ProjectID != "hbgw-events" {
		t.Errorf("unexpected events config: %+v", cfg.Events)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "INVENTORY_SERVER_PORT=7070\nexport INVENTORY_FIREBASE_PROJECT_ID=\"hbgw-dot\"\n# comment\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "hbgw-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	env := map[string]string{"INVENTORY_FIREBASE_PROJECT_ID": "hbgw-dev"}
	if _, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env"))); err != nil {
		t.Fatalf("expected missing dotenv to be ignored, got %v", err)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	env := map[string]string{"INVENTORY_WATCH_WINDOW": "0"}
	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validation.Fields()
	if len(fields) != 2 || fields[0] != "Firestore.ProjectID" || fields[1] != "Watch.Window" {
		t.Fatalf("unexpected invalid fields %v", fields)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "INVENTORY_FIREBASE_PROJECT_ID=dot-project\nINVENTORY_BUILD_VERSION=dot-version\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("INVENTORY_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("INVENTORY_BUILD_COMMIT_SHA", "abc123")

	overrides := map[string]string{
		"INVENTORY_FIREBASE_PROJECT_ID": "override-project",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["INVENTORY_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["INVENTORY_BUILD_VERSION"]; got != "dot-version" {
		t.Fatalf("expected dotenv build version, got %s", got)
	}
	if got := values["INVENTORY_BUILD_COMMIT_SHA"]; got != "abc123" {
		t.Fatalf("expected system env commit, got %s", got)
	}
}
