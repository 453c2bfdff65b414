package v1

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/binwatch/snaphash/internal"
	"github.com/charmbracelet/log"
)

// Client provides programmatic access to the snapshot hash collector.
type Client struct {
	cfg    *internal.Config
	client *http.Client
	logger *log.Logger
}

// New creates a new Client with the given options. Without WithConfigFile
// the client runs on defaults; option overrides apply on top of whatever
// the config provides.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	conf := internal.DefaultConfig()
	if cfg.configPath != "" {
		loaded, err := internal.LoadConfig(cfg.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		conf = loaded
	}
	if cfg.ledgerPath != "" {
		conf.LedgerPath = cfg.ledgerPath
	}
	if cfg.cloneDir != "" {
		conf.CloneDir = cfg.cloneDir
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{
		cfg:    conf,
		client: cfg.httpClient,
		logger: logger,
	}, nil
}

// Collect runs one collection pass and returns the records it added to the
// ledger, newest first.
func (c *Client) Collect(ctx context.Context) ([]Record, error) {
	result, err := internal.NewPipeline(c.cfg, c.client, c.logger).Run(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	return toRecords(result.NewRecords), nil
}

// Scan returns the first snapshot hash found in r.
func (c *Client) Scan(r io.Reader) (string, bool) {
	return internal.ExtractReader(r)
}

// ScanFile returns the first snapshot hash found in the file at path.
func (c *Client) ScanFile(path string) (string, bool) {
	return internal.ExtractFile(path)
}

// Valid reports whether s is a well-formed snapshot hash.
func (c *Client) Valid(s string) bool {
	return internal.IsSnapshotHash(s)
}

// Records returns the current ledger contents, newest first. A missing
// ledger file yields an empty slice.
func (c *Client) Records() ([]Record, error) {
	ledger, err := internal.ReadLedger(c.cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	records, err := ledger.Records()
	if err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	return toRecords(records), nil
}

func toRecords(in []internal.Record) []Record {
	records := make([]Record, 0, len(in))
	for _, r := range in {
		records = append(records, Record{
			Channel:        r.Channel,
			Version:        r.Version,
			DartSDKVersion: r.DartSDKVersion,
			ReleaseDate:    r.ReleaseDate,
			Hash:           r.Hash,
			Engine:         r.Engine,
			SnapshotHash:   r.SnapshotHash,
		})
	}
	return records
}
