package invoice

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultURL is the invoice-parsing endpoint of the reference deployment.
const DefaultURL = "http://localhost:5000/api/invoice"

// Config for the invoice-parsing client.
type Config struct {
	URL     string            // default DefaultURL
	Timeout time.Duration     // http client timeout
	Headers map[string]string // extra request headers (auth etc.)
}

// Client wraps the remote invoice-parsing service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// WithHTTPClient swaps the underlying http client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}
