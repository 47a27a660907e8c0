package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/examsrs/pkg/models"
)

// Config holds the process configuration
type Config struct {
	// Database backend: sqlite, postgres or memory
	DBType string
	// Path of the sqlite database file
	DBPath string
	// Postgres connection string
	DatabaseURL string

	LogMode string
	// Address for the Prometheus endpoint; empty disables it
	MetricsAddr string

	LeechThreshold    int
	LeechScanInterval time.Duration
	SuspendFor        time.Duration
	// Question categories that get an expert explanation recommendation
	ComplexTopics []string

	// Question catalog spreadsheet (.xlsx or .csv); empty means no catalog
	CatalogPath  string
	CatalogSheet string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DBType:            "sqlite",
		DBPath:            "data/examsrs.db",
		LogMode:           "dev",
		MetricsAddr:       ":9090",
		LeechThreshold:    models.DefaultLeechThreshold,
		LeechScanInterval: 6 * time.Hour,
		SuspendFor:        90 * 24 * time.Hour,
		ComplexTopics:     []string{"Politik", "Geschichte"},
		CatalogSheet:      "Questions",
	}
}

// Load reads an optional .env file and then the environment on top of the defaults
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	cfg.DBType = str("DB_TYPE", cfg.DBType)
	cfg.DBPath = str("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = str("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogMode = str("LOG_MODE", cfg.LogMode)
	cfg.MetricsAddr = strings.TrimSpace(os.Getenv("METRICS_ADDR"))
	if _, set := os.LookupEnv("METRICS_ADDR"); !set {
		cfg.MetricsAddr = DefaultConfig().MetricsAddr
	}
	cfg.CatalogPath = str("CATALOG_PATH", cfg.CatalogPath)
	cfg.CatalogSheet = str("CATALOG_SHEET", cfg.CatalogSheet)

	var err error
	if cfg.LeechThreshold, err = integer("LEECH_THRESHOLD", cfg.LeechThreshold); err != nil {
		return nil, err
	}
	if cfg.LeechScanInterval, err = duration("LEECH_SCAN_INTERVAL", cfg.LeechScanInterval); err != nil {
		return nil, err
	}
	days, err := integer("SUSPEND_DAYS", int(cfg.SuspendFor/(24*time.Hour)))
	if err != nil {
		return nil, err
	}
	cfg.SuspendFor = time.Duration(days) * 24 * time.Hour
	if v := strings.TrimSpace(os.Getenv("COMPLEX_TOPICS")); v != "" {
		cfg.ComplexTopics = splitList(v)
	}

	return cfg, cfg.Validate()
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.DBType {
	case "sqlite", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_TYPE=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DBType)
	}
	if c.LeechThreshold < 1 {
		return fmt.Errorf("LEECH_THRESHOLD must be positive, got %d", c.LeechThreshold)
	}
	if c.LeechScanInterval <= 0 {
		return fmt.Errorf("LEECH_SCAN_INTERVAL must be positive, got %s", c.LeechScanInterval)
	}
	if c.SuspendFor <= 0 {
		return fmt.Errorf("SUSPEND_DAYS must be positive")
	}
	return nil
}

func str(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func integer(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return i, nil
}

func duration(name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
