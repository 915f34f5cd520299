package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Remote   RemoteConfig   `yaml:"remote"`
	Queue    QueueConfig    `yaml:"queue"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // "sqlite" | "postgres"
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	// SessionIdleTTL closes HTTP sessions nobody touched for this long; 0 keeps them.
	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext     string `yaml:"pdftotext"`
	Pdftoppm      string `yaml:"pdftoppm"`
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	DPI           int    `yaml:"dpi"`
	MaxPages      int    `yaml:"max_pages"`
}

// RemoteConfig holds the invoice and credibility service endpoints
type RemoteConfig struct {
	InvoiceURL     string        `yaml:"invoice_url"`
	CredibilityURL string        `yaml:"credibility_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// QueueConfig holds batch worker configuration
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	Size           int           `yaml:"size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// DefaultConfig returns the configuration used when neither file nor env set a value.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:ledger.db?_pragma=busy_timeout(5000)",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:       ":8080",
			GRPCAddr:       ":9090",
			SessionIdleTTL: 30 * time.Minute,
		},
		OCR: OCRConfig{
			TesseractLang: "eng",
			DPI:           300,
		},
		Remote: RemoteConfig{
			InvoiceURL:     "http://localhost:5000/api/invoice",
			CredibilityURL: "http://localhost:5000/api/credibility",
			Timeout:        45 * time.Second,
		},
		Queue: QueueConfig{
			Workers:        4,
			Size:           256,
			ProcessTimeout: 3 * time.Minute,
		},
	}
}

// LoadConfigFile reads a YAML config file over the defaults.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads configuration from LEDGER_CONFIG (if set) and then environment variables.
// Environment variables win over file values.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	db := &cfg.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.DSN = getEnv("DB_URL", db.DSN)
	db.MaxConns = getEnvAsInt32("DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvAsInt32("DB_MIN_CONNS", db.MinConns)
	db.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", db.MaxConnLifetime)
	db.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", db.MaxConnIdleTime)
	db.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", db.DialTimeout)
	db.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", db.StatementTimeout)

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.SessionIdleTTL = getEnvAsDuration("SESSION_IDLE_TTL", cfg.Server.SessionIdleTTL)

	o := &cfg.OCR
	o.Pdftotext = getEnv("PDFTOTEXT_BIN", o.Pdftotext)
	o.Pdftoppm = getEnv("PDFTOPPM_BIN", o.Pdftoppm)
	o.Tesseract = getEnv("TESSERACT_BIN", o.Tesseract)
	o.TesseractLang = getEnv("TESSERACT_LANG", o.TesseractLang)
	o.TessdataDir = getEnv("TESSDATA_PREFIX", o.TessdataDir)
	o.DPI = getEnvAsInt("OCR_DPI", o.DPI)
	o.MaxPages = getEnvAsInt("OCR_MAX_PAGES", o.MaxPages)

	cfg.Remote.InvoiceURL = getEnv("INVOICE_API_URL", cfg.Remote.InvoiceURL)
	cfg.Remote.CredibilityURL = getEnv("CREDIBILITY_API_URL", cfg.Remote.CredibilityURL)
	cfg.Remote.Timeout = getEnvAsDuration("REMOTE_TIMEOUT", cfg.Remote.Timeout)

	cfg.Queue.Workers = getEnvAsInt("QUEUE_WORKERS", cfg.Queue.Workers)
	cfg.Queue.Size = getEnvAsInt("QUEUE_SIZE", cfg.Queue.Size)
	cfg.Queue.ProcessTimeout = getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", cfg.Queue.ProcessTimeout)

	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInput)
	}
	if c.Remote.InvoiceURL == "" {
		return NewAppError("CONFIG_ERROR", "INVOICE_API_URL is required", ErrInput)
	}
	if c.Remote.CredibilityURL == "" {
		return NewAppError("CONFIG_ERROR", "CREDIBILITY_API_URL is required", ErrInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInput)
	}
	return nil
}
