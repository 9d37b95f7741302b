package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const defaultArchiveAPI = "https://archive.org/wayback/available"

// ArchiveClient resolves the latest public snapshot of a URL through the
// Wayback availability API.
type ArchiveClient struct {
	client  *http.Client
	apiBase string
}

// NewArchiveClient builds a client; apiBase overrides the production
// endpoint in tests.
func NewArchiveClient(client *http.Client, apiBase string) *ArchiveClient {
	if apiBase == "" {
		apiBase = defaultArchiveAPI
	}
	return &ArchiveClient{client: client, apiBase: apiBase}
}

type availabilityResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// SnapshotURL returns the closest available snapshot URL for target, or ""
// when none exists.
func (a *ArchiveClient) SnapshotURL(ctx context.Context, target string) (string, error) {
	q := url.Values{"url": {target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", &ConnectionError{URL: a.apiBase, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, URL: a.apiBase}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ConnectionError{URL: a.apiBase, Err: err}
	}
	var avail availabilityResponse
	if err := json.Unmarshal(body, &avail); err != nil {
		return "", fmt.Errorf("decode availability response: %w", err)
	}
	closest := avail.ArchivedSnapshots.Closest
	if !closest.Available || closest.URL == "" {
		return "", nil
	}
	return closest.URL, nil
}
