package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv    string
	Port       string
	StoreCode  string
	InstanceID string
	Database   DatabaseConfig
	Remote     RemoteConfig
	Sync       SyncConfig
	Assets     AssetConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// RemoteConfig holds remote catalog/order service settings
type RemoteConfig struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// SyncConfig holds synchronizer tunables
type SyncConfig struct {
	PageSize      int           // records per remote page
	BatchSize     int           // rows per local write batch
	Interval      time.Duration // background sync period
	GraceWindow   time.Duration // freshly imported orders younger than this are not pushed
	SyncOnStartup bool
}

// AssetConfig holds asset cache manager tunables
type AssetConfig struct {
	Generation      string        // cache generation; bumping it invalidates older entries
	BatchSize       int           // downloads per batch, also the concurrency bound
	DownloadTimeout time.Duration // absolute per-download timeout
	StaggerDelay    time.Duration // delay between download starts within a batch
	StallAfter      time.Duration // nudge the worker when no progress for this long
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	remoteURL := os.Getenv("REMOTE_API_URL")
	if remoteURL == "" {
		return nil, fmt.Errorf("REMOTE_API_URL is required")
	}

	storeCode := os.Getenv("STORE_CODE")
	if storeCode == "" {
		return nil, fmt.Errorf("STORE_CODE is required")
	}

	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	return &Config{
		NodeEnv:    getEnv("NODE_ENV", "development"),
		Port:       getEnv("PORT", "3400"),
		StoreCode:  storeCode,
		InstanceID: instanceID,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "posync"),
		},
		Remote: RemoteConfig{
			URL:        remoteURL,
			APIKey:     os.Getenv("REMOTE_API_KEY"),
			Timeout:    getDurationEnv("REMOTE_TIMEOUT_SECONDS", 30*time.Second),
			MaxRetries: getIntEnv("REMOTE_MAX_RETRIES", 3),
		},
		Sync: SyncConfig{
			PageSize:      getIntEnv("SYNC_PAGE_SIZE", 1000),
			BatchSize:     getIntEnv("SYNC_BATCH_SIZE", 500),
			Interval:      getDurationEnv("SYNC_INTERVAL_SECONDS", 15*time.Minute),
			GraceWindow:   getDurationEnv("SYNC_PUSH_GRACE_SECONDS", 5*time.Minute),
			SyncOnStartup: getBoolEnv("SYNC_ON_STARTUP", true),
		},
		Assets: AssetConfig{
			Generation:      getEnv("ASSET_CACHE_GENERATION", "v1"),
			BatchSize:       getIntEnv("ASSET_BATCH_SIZE", 10),
			DownloadTimeout: getDurationEnv("ASSET_DOWNLOAD_TIMEOUT_SECONDS", 8*time.Second),
			StaggerDelay:    getDurationEnv("ASSET_STAGGER_MS", 100*time.Millisecond),
			StallAfter:      getDurationEnv("ASSET_STALL_SECONDS", 30*time.Second),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getDurationEnv reads an integer env var scaled by the default's unit
// (seconds for *_SECONDS keys, milliseconds for *_MS keys).
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil && n > 0 {
			unit := time.Second
			if len(key) > 3 && key[len(key)-3:] == "_MS" {
				unit = time.Millisecond
			}
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}
