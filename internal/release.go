package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Release is one entry of the published release feed. Values are carried
// exactly as the feed provides them; entries arrive newest first and that
// order is preserved.
type Release struct {
	Hash           string `json:"hash"`
	Channel        string `json:"channel"`
	Version        string `json:"version"`
	DartSDKVersion string `json:"dart_sdk_version"`
	ReleaseDate    string `json:"release_date"`
}

type releaseFeed struct {
	Releases []Release `json:"releases"`
}

// FetchReleases downloads and decodes the release feed at url. Any failure
// here aborts the whole run: without the feed there is nothing to collect.
func FetchReleases(ctx context.Context, client *http.Client, url string) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch releases: status %d", resp.StatusCode)
	}

	var feed releaseFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode releases: %w", err)
	}

	return feed.Releases, nil
}
