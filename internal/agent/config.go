package agent

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	// required fields
	BaseURL string
	APIKey  string

	InvokeTimeout time.Duration // per-invocation timeout (default: 60s)
	MaxRetries    int           // retry attempts (default: 2)
	BaseBackoff   time.Duration // initial backoff (default: 100ms)

	// Optional connection pool settings
	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// Validate checks required fields only.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	if c.APIKey == "" {
		return errors.New("APIKey is required")
	}
	return nil
}

// WithDefaults returns a copy of Config with sane defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	// Normalize BaseURL so paths can be appended safely.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

type httpGenerator struct {
	cfg        Config
	path       string // PathAugmented or PathPlain
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPGenerator creates a Generator backed by the external agent
// service, for the given path (PathAugmented or PathPlain).
func NewHTTPGenerator(cfg Config, path string, logger *zap.Logger) (Generator, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if path != PathAugmented && path != PathPlain {
		return nil, fmt.Errorf("unknown generator path %q", path)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &httpGenerator{
		cfg:        cfg,
		path:       path,
		httpClient: httpClient,
		logger:     logger.Named("agentclient").With(zap.String("path", path)),
	}, nil
}

// NewHTTPManager builds a Manager with both flavors against the same
// agent service.
func NewHTTPManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	augmented, err := NewHTTPGenerator(cfg, PathAugmented, logger)
	if err != nil {
		return nil, err
	}
	plain, err := NewHTTPGenerator(cfg, PathPlain, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{Augmented: augmented, Plain: plain}, nil
}

// defaultTransport creates an HTTP transport with connection pooling and
// reasonable timeouts.
func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Close releases resources held by the generator.
func (g *httpGenerator) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}
