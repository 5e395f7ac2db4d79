package songfeed

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 250 * time.Millisecond
)

// verdict is the outcome of one attempt. A nil failure means the response is
// handed to the caller, whatever its status.
type verdict struct {
	failure *domain.FeedError
	retry   bool
	wait    time.Duration
}

func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseBackoff := c.baseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBackoff
	}

	ctx := req.Context()
	var last verdict
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := last.wait
			if delay <= 0 {
				delay = baseBackoff << (attempt - 1)
			}
			if err := waitFor(ctx, delay); err != nil {
				return nil, classify(err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, classify(err)
		}

		// #nosec G107 -- URL constructed from the configured feed base URL
		resp, err := c.httpClient.Do(req)
		last = judge(resp, err, time.Now())
		if last.failure == nil {
			return resp, nil
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		if !last.retry || (err != nil && ctx.Err() != nil) {
			return nil, last.failure
		}
		c.log.Warn().Err(last.failure).Int("attempt", attempt+1).Int("max", maxRetries).Msg("feed request failed")
	}

	if last.failure.Err != nil {
		last.failure.Err = errors.Wrapf(last.failure.Err, "songfeed adapter: request failed after %d attempts", maxRetries)
	}
	return nil, last.failure
}

// judge classifies an attempt. Transport errors, 429 and 5xx are retried;
// every other response goes back to the caller.
func judge(resp *http.Response, err error, now time.Time) verdict {
	switch {
	case err != nil:
		return verdict{failure: classify(err), retry: true}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return verdict{
			failure: &domain.FeedError{Kind: domain.FeedServer, Status: resp.StatusCode},
			retry:   true,
			wait:    retryAfter(resp.Header.Get("Retry-After"), now),
		}
	}
	return verdict{}
}

// retryAfter reads a Retry-After value in delta seconds or as an HTTP date.
// Zero means the server expressed no usable preference.
func retryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(seconds, 0)) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil && when.After(now) {
		return when.Sub(now)
	}
	return 0
}

func waitFor(ctx context.Context, delay time.Duration) error {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "songfeed adapter: request canceled")
	case <-t.C:
		return nil
	}
}

// classify maps a transport failure to a FeedError.
func classify(err error) *domain.FeedError {
	var feedErr *domain.FeedError
	if errors.As(err, &feedErr) {
		return feedErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.FeedError{Kind: domain.FeedTimeout, Err: err}
	}
	return &domain.FeedError{Kind: domain.FeedNetwork, Err: err}
}
