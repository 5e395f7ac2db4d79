// Package songfeed is the HTTP client for the mood-tagged song recommendation
// service.
package songfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// DefaultTimeout bounds one FetchSongs call, retries included.
const DefaultTimeout = 10 * time.Second

// Client fetches song lists over HTTP.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	log         zerolog.Logger
}

// compile-time interface assertion
var _ ports.SongFeed = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each FetchSongs call across all attempts.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets the attempt count and the first backoff step.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseBackoff = backoff
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient constructs a song feed client rooted at baseURL.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "songfeed").Logger()
	return c
}

// FetchSongs retrieves the ordered song list for mood. Failures are
// *domain.FeedError values classified as network, server or timeout.
func (c *Client) FetchSongs(ctx context.Context, mood domain.Mood) ([]domain.Track, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + "/songs?" + url.Values{"mood": {string(mood)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.FeedError{Kind: domain.FeedNetwork, Err: errors.Wrap(err, "songfeed adapter")}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FeedError{Kind: domain.FeedServer, Status: resp.StatusCode}
	}

	var body songsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return nil, classify(ctx.Err())
		}
		return nil, &domain.FeedError{Kind: domain.FeedServer, Err: errors.Wrap(err, "songfeed adapter: decode response")}
	}

	tracks := mapSongsToDomain(body.Songs, mood)
	c.log.Debug().Str("mood", string(mood)).Int("tracks", len(tracks)).Msg("fetched songs")
	return tracks, nil
}
