package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Collector walks the release list newest-first and turns each release into
// a ledger record: resolve the release commit to a build id, retrieve that
// build's artifact, scan its binary. Releases are processed one at a time
// and a failed release never affects the next one.
type Collector struct {
	resolveBuild func(ctx context.Context, commit string) (string, error)
	snapshotFor  func(ctx context.Context, buildID string) (string, error)
	logger       *log.Logger
}

func NewCollector(
	resolveBuild func(ctx context.Context, commit string) (string, error),
	snapshotFor func(ctx context.Context, buildID string) (string, error),
	logger *log.Logger,
) *Collector {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Collector{
		resolveBuild: resolveBuild,
		snapshotFor:  snapshotFor,
		logger:       logger,
	}
}

// Collect returns one record per release that yields a hash, in input
// order. It stops at the first release whose commit hash equals stopHash,
// the newest hash already recorded; everything at and past that point was
// handled by an earlier run.
func (c *Collector) Collect(ctx context.Context, releases []Release, stopHash string) ([]Record, error) {
	var records []Record

	for _, rel := range releases {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		if stopHash != "" && rel.Hash == stopHash {
			c.logger.Info("reached newest recorded release", "version", rel.Version)
			break
		}

		c.logger.Debug("processing release",
			"channel", rel.Channel, "version", rel.Version, "commit", shortHash(rel.Hash))

		buildID, err := c.resolveBuild(ctx, rel.Hash)
		if errors.Is(err, ErrRevisionMiss) {
			c.logger.Warn("no build id at revision, skipping", "version", rel.Version)
			continue
		}
		if err != nil {
			c.logger.Warn("build lookup failed, skipping", "version", rel.Version, "err", err)
			continue
		}

		hash, err := c.snapshotFor(ctx, buildID)
		if errors.Is(err, ErrNoSnapshotHash) {
			c.logger.Info("artifact carries no snapshot hash, skipping", "version", rel.Version)
			continue
		}
		if err != nil {
			c.logger.Warn("artifact retrieval failed, skipping", "version", rel.Version, "err", err)
			continue
		}

		c.logger.Info("extracted snapshot hash",
			"version", rel.Version, "engine", shortHash(buildID), "snapshot_hash", hash)

		records = append(records, Record{
			Channel:        rel.Channel,
			Version:        rel.Version,
			DartSDKVersion: rel.DartSDKVersion,
			ReleaseDate:    rel.ReleaseDate,
			Hash:           rel.Hash,
			Engine:         buildID,
			SnapshotHash:   hash,
		})
	}

	return records, nil
}

// BuildResolver reads the build id file at each release commit. An engine
// file that exists but is blank counts as a miss.
func BuildResolver(repo *SourceRepo, enginePath string) func(context.Context, string) (string, error) {
	return func(_ context.Context, commit string) (string, error) {
		content, err := repo.FileAt(commit, enginePath)
		if err != nil {
			return "", err
		}
		buildID := strings.TrimSpace(content)
		if buildID == "" {
			return "", fmt.Errorf("%w: %s is blank", ErrRevisionMiss, enginePath)
		}
		return buildID, nil
	}
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}
