// Package dictionary checks guesses against a remote dictionary API.
package dictionary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the free dictionary API; the word is appended to it.
const DefaultBaseURL = "https://api.dictionaryapi.dev/api/v2/entries/en/"

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 5 * time.Second

// DefaultCacheSize is how many answers a Client remembers.
const DefaultCacheSize = 4096

// Config holds client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
}

// Client looks words up over HTTP. Lookups for the same word are coalesced
// and definitive answers are kept in a fixed-size LRU cache.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger

	group singleflight.Group
	cache *lru.Cache[string, bool]
}

// New returns a Client. A nil httpClient uses http.DefaultClient.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, bool](cfg.CacheSize)
	return &Client{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http:    httpClient,
		logger:  logger,
		cache:   cache,
	}
}

// CheckWord reports whether the dictionary has an entry for word. A 404 is
// a definitive "no"; any other failure is returned as an error.
func (c *Client) CheckWord(ctx context.Context, word string) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, nil
	}

	if known, ok := c.cache.Get(word); ok {
		return known, nil
	}

	// The shared lookup outlives any one caller; lookup applies its own timeout.
	lookupCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(word, func() (any, error) {
		return c.lookup(lookupCtx, word)
	})
	if err != nil {
		return false, err
	}
	known := v.(bool)
	if shared {
		c.logger.Debug("dictionary lookup shared", zap.String("word", word))
	}

	if c.cache.Add(word, known) {
		c.logger.Debug("dictionary cache full, evicted oldest answer")
	}
	return known, nil
}

func (c *Client) lookup(ctx context.Context, word string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.PathEscape(word), nil)
	if err != nil {
		return false, fmt.Errorf("dictionary request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("dictionary lookup %q: %w", word, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.logger.Debug("dictionary hit", zap.String("word", word))
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("dictionary miss", zap.String("word", word))
		return false, nil
	default:
		return false, fmt.Errorf("dictionary lookup %q: unexpected status %d", word, resp.StatusCode)
	}
}

// CacheLen returns the number of cached answers.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}
