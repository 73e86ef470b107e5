package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hadiqa-go/internal/hq"
)

// DefaultTimeout bounds a single listing request.
const DefaultTimeout = 15 * time.Second

// Resource is one record of the media host's tag listing.
type Resource struct {
	PublicID  string          `json:"public_id"`
	Format    string          `json:"format"`
	Version   int64           `json:"version"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	CreatedAt string          `json:"created_at"`
	Context   resourceContext `json:"context"`
}

type resourceContext struct {
	Custom struct {
		Caption string `json:"caption"`
	} `json:"custom"`
}

type listResponse struct {
	Resources []Resource `json:"resources"`
}

// Client lists tagged videos from a Cloudinary-style public listing.
type Client struct {
	baseURL    string
	cloudName  string
	tag        string
	clock      hq.Clock
	httpClient *http.Client
}

// NewClient creates a listing client. timeout <= 0 uses DefaultTimeout.
func NewClient(baseURL, cloudName, tag string, timeout time.Duration, clock hq.Clock) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		cloudName:  strings.TrimSpace(cloudName),
		tag:        tag,
		clock:      clock,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListURL returns the listing URL, cache-busted with the current time.
func (c *Client) ListURL() string {
	return fmt.Sprintf("%s/%s/video/list/%s.json?t=%d", c.baseURL, c.cloudName, c.tag, c.clock.Now().UnixMilli())
}

// PlaybackURL returns the auto-quality, auto-format delivery URL for r.
func (c *Client) PlaybackURL(r Resource) string {
	return fmt.Sprintf("%s/%s/video/upload/q_auto,f_auto/v%d/%s.%s", c.baseURL, c.cloudName, r.Version, r.PublicID, r.Format)
}

// ListVideos fetches the listing and maps it to catalog entries.
// Any failure is returned; the caller owns the fallback.
func (c *Client) ListVideos(ctx context.Context) ([]hq.VideoEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ListURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("listing returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	entries := make([]hq.VideoEntry, 0, len(list.Resources))
	for _, r := range list.Resources {
		entries = append(entries, c.toEntry(r))
	}
	return entries, nil
}

func (c *Client) toEntry(r Resource) hq.VideoEntry {
	title, category := hq.DefaultTitle, hq.DefaultCategory
	if caption := r.Context.Custom.Caption; caption != "" {
		title, category = caption, caption
	}

	e := hq.VideoEntry{
		ID:       r.PublicID,
		PublicID: r.PublicID,
		URL:      c.PlaybackURL(r),
		Kind:     hq.KindFromDimensions(r.Width, r.Height),
		Title:    title,
		Category: category,
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		e.CreatedAt = &t
	}
	return e
}

var _ hq.CatalogSource = (*Client)(nil)
