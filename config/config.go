package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the process-wide settings, read once at startup.
type Config struct {
	ListenAddr string
	LogLevel   string

	// AccessTokenSecret signs and verifies bearer tokens.
	AccessTokenSecret string
	TokenTTL          time.Duration

	// QuantityUpsert makes PUT /spice/{id} create a document when the id is unknown.
	QuantityUpsert bool

	CORSAllowedOrigins []string

	Storage StorageConfig
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	Type string

	MongoURI  string
	DBUser    string
	DBPass    string
	DBCluster string
	DBName    string

	DataSourceName   string
	LocalStoragePath string
	S3BucketName     string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         ":" + getEnvString("PORT", "5000"),
		LogLevel:           getEnvString("LOG_LEVEL", "info"),
		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN"),
		CORSAllowedOrigins: splitCSV(getEnvString("CORS_ALLOWED_ORIGINS", "https://*,http://*")),
		Storage: StorageConfig{
			Type:             os.Getenv("STORAGE_TYPE"),
			MongoURI:         os.Getenv("MONGODB_URI"),
			DBUser:           os.Getenv("DB_USER"),
			DBPass:           os.Getenv("DB_PASS"),
			DBCluster:        os.Getenv("DB_CLUSTER"),
			DBName:           getEnvString("DB_NAME", "spice-taste"),
			DataSourceName:   getEnvString("DATA_SOURCE_NAME", "spice-taste.db"),
			LocalStoragePath: getEnvString("LOCAL_STORAGE_PATH", "./data"),
			S3BucketName:     os.Getenv("S3_BUCKET_NAME"),
		},
	}

	var err error
	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if cfg.QuantityUpsert, err = getEnvBool("SPICE_QUANTITY_UPSERT", true); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "s3" && cfg.Storage.S3BucketName == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME environment variable must be set for s3 storage type")
	}
	if cfg.Storage.Type == "mongodb" && cfg.Storage.MongoURI == "" &&
		(cfg.Storage.DBUser == "" || cfg.Storage.DBPass == "" || cfg.Storage.DBCluster == "") {
		return nil, fmt.Errorf("mongodb storage needs MONGODB_URI or DB_USER, DB_PASS and DB_CLUSTER")
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
