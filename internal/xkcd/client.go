package xkcd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"comicframe/pkg/models"
)

const (
	DefaultBaseURL = "https://xkcd.com"

	// DefaultTimeout bounds every single request.
	DefaultTimeout = 10 * time.Second

	// FallbackLatestID is used when the latest comic cannot be fetched.
	FallbackLatestID = 3000
)

// Client fetches comic metadata from the info.0.json endpoints.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient creates a new Client. An empty baseURL selects DefaultBaseURL and
// a non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) latestURL() string {
	return c.BaseURL + "/info.0.json"
}

func (c *Client) comicURL(id int) string {
	return fmt.Sprintf("%s/%d/info.0.json", c.BaseURL, id)
}

// FetchLatestID returns the number of the most recent comic. It never fails:
// any error is logged and fallback is returned instead.
func (c *Client) FetchLatestID(ctx context.Context, fallback int) int {
	m, err := c.fetch(ctx, c.latestURL())
	if err != nil {
		log.Printf("[xkcd] latest comic: %v (using fallback %d)", err, fallback)
		return fallback
	}
	return m.ID
}

// FetchMetadata returns the metadata of comic id. It performs exactly one
// request; retrying is the caller's business.
func (c *Client) FetchMetadata(ctx context.Context, id int) (*models.ComicMetadata, error) {
	m, err := c.fetch(ctx, c.comicURL(id))
	if err != nil {
		return nil, fmt.Errorf("comic %d: %w", id, err)
	}
	return m, nil
}

func (c *Client) fetch(ctx context.Context, url string) (*models.ComicMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("xkcd: build request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xkcd: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("xkcd: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var m models.ComicMetadata
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("xkcd: decode json: %w", err)
	}
	if m.ID <= 0 {
		return nil, fmt.Errorf("xkcd: metadata without num")
	}
	if strings.TrimSpace(m.ImageURL) == "" {
		return nil, fmt.Errorf("xkcd: metadata without img")
	}
	return &m, nil
}
