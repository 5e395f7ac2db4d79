package songfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

func TestClientDoRequestWithRetry(t *testing.T) {
	tests := []struct {
		name             string
		statuses         []int
		maxRetries       int
		expectedStatus   int
		expectedAttempts int
		expectErr        bool
	}{
		{
			name:             "retries on 503 then succeeds",
			statuses:         []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK},
			maxRetries:       3,
			expectedStatus:   http.StatusOK,
			expectedAttempts: 3,
		},
		{
			name:             "exhausts retries on 429",
			statuses:         []int{http.StatusTooManyRequests},
			maxRetries:       2,
			expectedAttempts: 2,
			expectErr:        true,
		},
		{
			name:             "does not retry 404",
			statuses:         []int{http.StatusNotFound},
			maxRetries:       3,
			expectedStatus:   http.StatusNotFound,
			expectedAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				status := tt.statuses[len(tt.statuses)-1]
				if attempts <= len(tt.statuses) {
					status = tt.statuses[attempts-1]
				}
				w.WriteHeader(status)
			}))
			defer ts.Close()

			client := &Client{
				httpClient:  http.DefaultClient,
				baseURL:     ts.URL,
				maxRetries:  tt.maxRetries,
				baseBackoff: time.Millisecond,
				log:         zerolog.Nop(),
			}

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			if err != nil {
				t.Fatalf("create request: %v", err)
			}

			resp, err := client.doRequestWithRetry(req)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var feedErr *domain.FeedError
				if !errors.As(err, &feedErr) || feedErr.Kind != domain.FeedServer {
					t.Errorf("error = %v, want server FeedError", err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				defer resp.Body.Close()
				if resp.StatusCode != tt.expectedStatus {
					t.Errorf("status = %d, want %d", resp.StatusCode, tt.expectedStatus)
				}
			}
			if attempts != tt.expectedAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.expectedAttempts)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "empty", header: "", want: 0},
		{name: "seconds", header: "2", want: 2 * time.Second},
		{name: "negative seconds", header: "-4", want: 0},
		{name: "garbage", header: "soon", want: 0},
		{name: "past date", header: "Mon, 02 Jan 2006 15:04:05 GMT", want: 0},
		{name: "future date", header: "Sun, 01 Mar 2026 12:00:30 GMT", want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfter(tt.header, now); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestJudge(t *testing.T) {
	withStatus := func(code int, retryAfter string) *http.Response {
		resp := &http.Response{StatusCode: code, Header: http.Header{}}
		if retryAfter != "" {
			resp.Header.Set("Retry-After", retryAfter)
		}
		return resp
	}

	tests := []struct {
		name      string
		resp      *http.Response
		err       error
		wantKind  domain.FeedErrorKind
		wantFail  bool
		wantRetry bool
		wantWait  time.Duration
	}{
		{name: "ok", resp: withStatus(http.StatusOK, "")},
		{name: "not found goes to caller", resp: withStatus(http.StatusNotFound, "")},
		{name: "throttled", resp: withStatus(http.StatusTooManyRequests, "3"), wantKind: domain.FeedServer, wantFail: true, wantRetry: true, wantWait: 3 * time.Second},
		{name: "server error", resp: withStatus(http.StatusBadGateway, ""), wantKind: domain.FeedServer, wantFail: true, wantRetry: true},
		{name: "transport timeout", err: context.DeadlineExceeded, wantKind: domain.FeedTimeout, wantFail: true, wantRetry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := judge(tt.resp, tt.err, time.Now())
			if (v.failure != nil) != tt.wantFail {
				t.Fatalf("failure = %v, want failure %v", v.failure, tt.wantFail)
			}
			if v.failure != nil && v.failure.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", v.failure.Kind, tt.wantKind)
			}
			if v.retry != tt.wantRetry || v.wait != tt.wantWait {
				t.Errorf("retry = %v wait = %v, want %v and %v", v.retry, v.wait, tt.wantRetry, tt.wantWait)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.FeedErrorKind
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: domain.FeedTimeout},
		{name: "wrapped deadline", err: errors.Wrap(context.DeadlineExceeded, "dial"), want: domain.FeedTimeout},
		{name: "canceled", err: context.Canceled, want: domain.FeedNetwork},
		{name: "refused", err: errors.New("connection refused"), want: domain.FeedNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var feedErr *domain.FeedError
			if !errors.As(classify(tt.err), &feedErr) {
				t.Fatal("classify() did not return a FeedError")
			}
			if feedErr.Kind != tt.want {
				t.Errorf("kind = %s, want %s", feedErr.Kind, tt.want)
			}
		})
	}
}
