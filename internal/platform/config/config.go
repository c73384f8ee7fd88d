package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultEnvironment          = "local"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultWatchWindow          = 200
	defaultActivationRetry      = 2 * time.Second
	defaultResubscribeDelay     = 5 * time.Second
	defaultOrdersCollection     = "orders"
	defaultProductsCollection   = "products"
	defaultBusinessesCollection = "businesses"
	defaultServiceName          = "inventory-sync"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Watch       WatchConfig
	Events      EventsConfig
	Telemetry   TelemetryConfig
}

// ServerConfig configures the operator HTTP server.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID       string
	EmulatorHost    string
	CredentialsFile string
}

// WatchConfig controls the order change watcher and its activation gate.
type WatchConfig struct {
	// SellerID is attached automatically at start-up when set.
	SellerID             string
	Window               int
	ActivationRetry      time.Duration
	ResubscribeDelay     time.Duration
	OrdersCollection     string
	ProductsCollection   string
	BusinessesCollection string
}

// EventsConfig configures the Pub/Sub topic receiving inventory adjustment events.
// An empty Topic disables publishing.
type EventsConfig struct {
	Topic        string
	ProjectID    string
	EmulatorHost string
}

// TelemetryConfig names the service for logs, traces and metrics.
type TelemetryConfig struct {
	ServiceName string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(dotEnvValues))
	for key, value := range dotEnvValues {
		values[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the service configuration by combining defaults, .env overrides and environment variables.
func Load(opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "INVENTORY_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "INVENTORY_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "INVENTORY_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "INVENTORY_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "INVENTORY_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "INVENTORY_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "INVENTORY_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "INVENTORY_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "INVENTORY_FIRESTORE_EMULATOR_HOST", ""),
		},
		Watch: WatchConfig{
			SellerID:             strings.TrimSpace(stringWithDefault(lookup, "INVENTORY_WATCH_SELLER_ID", "")),
			Window:               intWithDefault(lookup, "INVENTORY_WATCH_WINDOW", defaultWatchWindow),
			ActivationRetry:      durationWithDefault(lookup, "INVENTORY_WATCH_ACTIVATION_RETRY", defaultActivationRetry),
			ResubscribeDelay:     durationWithDefault(lookup, "INVENTORY_WATCH_RESUBSCRIBE_DELAY", defaultResubscribeDelay),
			OrdersCollection:     stringWithDefault(lookup, "INVENTORY_WATCH_ORDERS_COLLECTION", defaultOrdersCollection),
			ProductsCollection:   stringWithDefault(lookup, "INVENTORY_WATCH_PRODUCTS_COLLECTION", defaultProductsCollection),
			BusinessesCollection: stringWithDefault(lookup, "INVENTORY_WATCH_BUSINESSES_COLLECTION", defaultBusinessesCollection),
		},
		Events: EventsConfig{
			Topic:        stringWithDefault(lookup, "INVENTORY_EVENTS_TOPIC", ""),
			ProjectID:    stringWithDefault(lookup, "INVENTORY_EVENTS_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "INVENTORY_EVENTS_EMULATOR_HOST", ""),
		},
		Telemetry: TelemetryConfig{
			ServiceName: stringWithDefault(lookup, "INVENTORY_SERVICE_NAME", defaultServiceName),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}
	cfg.Firestore.CredentialsFile = cfg.Firebase.CredentialsFile

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Watch.Window <= 0 {
		missing = append(missing, "Watch.Window")
	}
	if cfg.Watch.ActivationRetry <= 0 {
		missing = append(missing, "Watch.ActivationRetry")
	}
	if cfg.Watch.ResubscribeDelay <= 0 {
		missing = append(missing, "Watch.ResubscribeDelay")
	}
	if strings.TrimSpace(cfg.Watch.OrdersCollection) == "" {
		missing = append(missing, "Watch.OrdersCollection")
	}
	if strings.TrimSpace(cfg.Watch.ProductsCollection) == "" {
		missing = append(missing, "Watch.ProductsCollection")
	}
	if strings.TrimSpace(cfg.Watch.BusinessesCollection) == "" {
		missing = append(missing, "Watch.BusinessesCollection")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
