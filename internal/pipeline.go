package internal

import (
	"context"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
)

// Pipeline runs one full collection: fetch the release feed, walk it
// against the ledger newest-first, and write back every snapshot hash that
// was not recorded yet.
type Pipeline struct {
	cfg    *Config
	client *http.Client
	logger *log.Logger
}

func NewPipeline(cfg *Config, client *http.Client, logger *log.Logger) *Pipeline {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// CollectResult summarizes one pipeline run.
type CollectResult struct {
	NewRecords []Record
	Diff       string
	Written    bool
}

// Run performs the collection. With dryRun set the ledger file is left
// untouched and Diff carries the change that would have been written.
func (p *Pipeline) Run(ctx context.Context, dryRun bool) (*CollectResult, error) {
	releases, err := FetchReleases(ctx, p.client, p.cfg.ReleasesURL)
	if err != nil {
		return nil, err
	}
	p.logger.Info("fetched release feed", "releases", len(releases))

	ledger, err := ReadLedger(p.cfg.LedgerPath)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("loaded ledger", "path", p.cfg.LedgerPath, "records", len(ledger.Lines))

	repo, err := EnsureSourceRepo(ctx, p.cfg.CloneDir, p.cfg.RepoURL)
	if err != nil {
		return nil, err
	}
	if err := repo.Fetch(ctx); err != nil {
		p.logger.Warn("fetch failed, resolving against existing clone", "err", err)
	}

	artifacts := NewArtifactClient(p.client, p.cfg.ArtifactURL, p.cfg.BinaryName, "", p.logger)
	collector := NewCollector(BuildResolver(repo, p.cfg.EnginePath), artifacts.SnapshotHash, p.logger)

	records, err := collector.Collect(ctx, releases, ledger.NewestHash())
	if err != nil {
		return nil, err
	}

	result := &CollectResult{NewRecords: records}
	content := ledger.Render(records)

	if dryRun {
		result.Diff = LedgerDiff(ledger.Render(nil), content)
		return result, nil
	}

	if err := WriteLedger(p.cfg.LedgerPath, content); err != nil {
		return nil, err
	}
	result.Written = true
	p.logger.Info("ledger written", "path", p.cfg.LedgerPath, "added", len(records))

	return result, nil
}
