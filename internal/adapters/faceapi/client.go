// Package faceapi provides an adapter for the face detection sidecar.
// It loads the detector and expression bundles and posts camera frames for
// one-shot detection, returning per-face expression probabilities.
package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

const (
	defaultBaseURL        = "http://localhost:8500"
	defaultInputSize      = 416
	defaultScoreThreshold = 0.5
)

// Client talks to the sidecar over HTTP.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	inputSize      int
	scoreThreshold float64
	log            zerolog.Logger
}

// compile-time interface assertion
var _ ports.InferenceEngine = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInputSize sets the detector input size; frames are downscaled so their
// longer side does not exceed it.
func WithInputSize(n int) Option {
	return func(c *Client) { c.inputSize = n }
}

// WithScoreThreshold sets the minimum face score the detector reports.
func WithScoreThreshold(v float64) Option {
	return func(c *Client) { c.scoreThreshold = v }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient constructs a sidecar client.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		inputSize:      defaultInputSize,
		scoreThreshold: defaultScoreThreshold,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "faceapi").Logger()
	return c
}

// Load asks the sidecar to fetch and initialize the given model bundles.
func (c *Client) Load(ctx context.Context, modelURLs []string) error {
	body, err := json.Marshal(loadRequest{Models: modelURLs})
	if err != nil {
		return errors.Wrap(err, "faceapi: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/models/load", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "faceapi: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "faceapi: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	c.log.Info().Strs("models", modelURLs).Msg("models loaded")
	return nil
}

// Detect posts frame and returns the faces found, in sidecar order.
func (c *Client) Detect(ctx context.Context, frame image.Image) ([]ports.Detection, error) {
	if frame == nil {
		return nil, errors.New("faceapi: nil frame")
	}
	payload, err := encodeFrame(frame, c.inputSize)
	if err != nil {
		return nil, errors.Wrap(err, "faceapi: encode frame")
	}

	q := url.Values{}
	q.Set("input_size", strconv.Itoa(c.inputSize))
	q.Set("score_threshold", strconv.FormatFloat(c.scoreThreshold, 'f', -1, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/detect?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "faceapi: build request")
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "faceapi: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "faceapi: decode response")
	}
	if parsed.Error != "" {
		return nil, errors.Newf("faceapi: %s", parsed.Error)
	}

	out := make([]ports.Detection, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		out = append(out, ports.Detection{Score: d.Score, Expressions: d.Expressions.Sample()})
	}
	return out, nil
}

func statusError(resp *http.Response) error {
	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return errors.Newf("faceapi: unexpected status %d: %s", resp.StatusCode, body.Error)
	}
	return errors.Newf("faceapi: unexpected status %d", resp.StatusCode)
}
