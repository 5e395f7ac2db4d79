package worker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hajimehoshi/go-mp3"
)

// maxProbeBytes caps how much of a track is downloaded to measure it.
const maxProbeBytes = 64 << 20

var probeClient = &http.Client{Timeout: 30 * time.Second}

func probeDuration(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "probe request build failed")
	}
	// #nosec G107 -- URL comes from the song feed the player is configured for
	resp, err := probeClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "probe fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Newf("probe fetch status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBytes))
	if err != nil {
		return 0, errors.Wrap(err, "probe read failed")
	}
	return mp3Duration(bytes.NewReader(data))
}

// mp3Duration decodes the stream length. go-mp3 decodes to 16-bit stereo, so
// one sample frame is four bytes.
func mp3Duration(r io.Reader) (float64, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, errors.Wrap(err, "probe decode failed")
	}
	length := decoder.Length()
	if length <= 0 || decoder.SampleRate() <= 0 {
		return 0, errors.New("probe found no samples")
	}
	return float64(length) / 4 / float64(decoder.SampleRate()), nil
}

// ProbeDurationFunc allows tests to override the probe implementation.
var ProbeDurationFunc = probeDuration
