// Package wiki provides minimal clients for the Wikipedia action API, the
// Wikimedia pageviews REST API and the Wikidata API.
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mcp-wiki/internal/telemetry"
)

// ErrNotFound is reported when the upstream has no such page or entity.
var ErrNotFound = errors.New("not found")

const (
	maxJSONBody = 16 << 20
	maxPageBody = 5 << 20
)

// Endpoints holds the upstream base URLs. "{lang}" is replaced by the
// Wikipedia language code.
type Endpoints struct {
	WikipediaAPI     string
	WikipediaArticle string
	Pageviews        string
	WikidataAPI      string
	WikidataEntity   string
	WikidataWiki     string
}

// DefaultEndpoints returns the public Wikimedia endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		WikipediaAPI:     "https://{lang}.wikipedia.org/w/api.php",
		WikipediaArticle: "https://{lang}.wikipedia.org/wiki/",
		Pageviews:        "https://wikimedia.org/api/rest_v1",
		WikidataAPI:      "https://www.wikidata.org/w/api.php",
		WikidataEntity:   "https://www.wikidata.org/wiki/Special:EntityData/",
		WikidataWiki:     "https://www.wikidata.org/wiki/",
	}
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	UserAgent string
	HTTP      *http.Client
	CacheTTL  time.Duration
	// CacheEntries bounds the response cache; zero selects DefaultCacheEntries.
	CacheEntries int
	Endpoints    Endpoints
	Now          func() time.Time
}

// Client talks to the Wikimedia APIs. It is safe for concurrent use.
type Client struct {
	userAgent string
	http      *http.Client
	cache     *Cache
	ttl       time.Duration
	ep        Endpoints
	now       func() time.Time
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d for %s", e.Status, e.URL)
}

// Is reports 404 responses as ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// New returns a new client. If opts.HTTP is nil, a default with 30s timeout is used.
func New(opts Options) *Client {
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	def := DefaultEndpoints()
	ep := opts.Endpoints
	ep.WikipediaAPI = firstNonEmpty(ep.WikipediaAPI, def.WikipediaAPI)
	ep.WikipediaArticle = firstNonEmpty(ep.WikipediaArticle, def.WikipediaArticle)
	ep.Pageviews = strings.TrimRight(firstNonEmpty(ep.Pageviews, def.Pageviews), "/")
	ep.WikidataAPI = firstNonEmpty(ep.WikidataAPI, def.WikidataAPI)
	ep.WikidataEntity = firstNonEmpty(ep.WikidataEntity, def.WikidataEntity)
	ep.WikidataWiki = firstNonEmpty(ep.WikidataWiki, def.WikidataWiki)
	return &Client{
		userAgent: opts.UserAgent,
		http:      opts.HTTP,
		cache:     NewCache(opts.CacheEntries),
		ttl:       opts.CacheTTL,
		ep:        ep,
		now:       opts.Now,
	}
}

func (c *Client) wikipediaAPI(lang string) string {
	return strings.ReplaceAll(c.ep.WikipediaAPI, "{lang}", lang)
}

func (c *Client) articleURL(lang, title string) string {
	return strings.ReplaceAll(c.ep.WikipediaArticle, "{lang}", lang) + strings.ReplaceAll(title, " ", "_")
}

func (c *Client) wikidataURL(id string) string { return c.ep.WikidataWiki + id }

// getJSON fetches rawURL and decodes the JSON body into v. Successful bodies
// are cached by URL when a TTL is configured.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	if c.ttl > 0 {
		if body, ok := c.cache.Get(rawURL); ok {
			return json.Unmarshal(body, v)
		}
	}
	body, err := c.get(ctx, rawURL, "application/json", maxJSONBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	if c.ttl > 0 {
		c.cache.Set(rawURL, body, c.ttl)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", accept)
	telemetry.Inject(ctx, req.Header)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// FetchPage downloads an arbitrary web page and returns its body as text.
// Pages are never cached.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (string, error) {
	body, err := c.get(ctx, rawURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8", maxPageBody)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
