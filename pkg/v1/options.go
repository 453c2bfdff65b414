package v1

import (
	"net/http"

	"github.com/charmbracelet/log"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	configPath string
	ledgerPath string
	cloneDir   string
	httpClient *http.Client
	logger     *log.Logger
}

// WithConfigFile loads settings from the config file at path.
func WithConfigFile(path string) Option {
	return func(c *clientConfig) {
		c.configPath = path
	}
}

// WithLedgerPath overrides where the ledger CSV lives.
func WithLedgerPath(path string) Option {
	return func(c *clientConfig) {
		c.ledgerPath = path
	}
}

// WithCloneDir overrides where the source repository clone is kept.
func WithCloneDir(dir string) Option {
	return func(c *clientConfig) {
		c.cloneDir = dir
	}
}

// WithHTTPClient sets the client used for feed and artifact requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithLogger routes collection narration to logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
