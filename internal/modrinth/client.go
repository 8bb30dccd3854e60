package modrinth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Modrinth v2 API root.
const DefaultBaseURL = "https://api.modrinth.com/v2"

const searchLimit = 20

// Fetch failures surfaced to the caller. Never retried here; the
// operator retries by repeating the request.
var (
	ErrSearchFailed   = errors.New("plugin search failed")
	ErrDownloadFailed = errors.New("plugin download failed")
)

// Project is one search hit.
type Project struct {
	ProjectID     string   `json:"project_id"`
	Slug          string   `json:"slug"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Description   string   `json:"description"`
	Downloads     int64    `json:"downloads"`
	LatestVersion string   `json:"latest_version"`
	GameVersions  []string `json:"game_versions"`
}

// Version is one release of a project.
type Version struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	GameVersions []string      `json:"game_versions"`
	Loaders      []string      `json:"loaders"`
	Files        []VersionFile `json:"files"`
}

// VersionFile is one downloadable artifact of a version.
type VersionFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Primary  bool   `json:"primary"`
}

// Client talks to the Modrinth API. Stateless; safe for concurrent
// use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a Modrinth client with sane timeouts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries for plugins matching the query string.
func (c *Client) Search(ctx context.Context, query string) ([]Project, error) {
	facets, _ := json.Marshal([][]string{{"project_type:plugin"}})

	params := url.Values{}
	params.Set("query", query)
	params.Set("facets", string(facets))
	params.Set("limit", fmt.Sprintf("%d", searchLimit))

	var response struct {
		Hits []Project `json:"hits"`
	}
	if err := c.getJSON(ctx, "/search?"+params.Encode(), &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	return response.Hits, nil
}

// Versions lists a project's releases. When gameVersion is set the
// listing is filtered server-side; an empty filtered result falls
// back to the unfiltered listing so the caller can still offer the
// latest release.
func (c *Client) Versions(ctx context.Context, projectID, gameVersion string) ([]Version, error) {
	path := fmt.Sprintf("/project/%s/version", url.PathEscape(projectID))

	if gameVersion != "" {
		filter, _ := json.Marshal([]string{gameVersion})
		params := url.Values{}
		params.Set("game_versions", string(filter))

		var versions []Version
		if err := c.getJSON(ctx, path+"?"+params.Encode(), &versions); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
		}
		if len(versions) > 0 {
			return versions, nil
		}
	}

	var versions []Version
	if err := c.getJSON(ctx, path, &versions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	return versions, nil
}

// Download fetches an artifact's bytes from its CDN URL.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrDownloadFailed, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
