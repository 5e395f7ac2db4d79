package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// applyEnv overrides fields from MOODPLAYER_* variables. Empty values are
// ignored.
func (c *Config) applyEnv(getenv func(string) string) error {
	vars := []struct {
		key   string
		apply func(string) error
	}{
		{"HTTP_ADDR", setString(&c.HTTPAddr)},
		{"SONGS_ADDR", setString(&c.SongsAddr)},
		{"FEED_URL", setString(&c.Feed.BaseURL)},
		{"FEED_TIMEOUT", setDuration(&c.Feed.Timeout)},
		{"FEED_MAX_RETRIES", setInt(&c.Feed.MaxRetries)},
		{"FEED_RETRY_BACKOFF", setDuration(&c.Feed.RetryBackoff)},
		{"FEED_CLIENT_ID", setString(&c.Feed.OAuth.ClientID)},
		{"FEED_CLIENT_SECRET", setString(&c.Feed.OAuth.ClientSecret)},
		{"FEED_TOKEN_URL", setString(&c.Feed.OAuth.TokenURL)},
		{"FEED_SCOPES", setList(&c.Feed.OAuth.Scopes)},
		{"INFERENCE_URL", setString(&c.Inference.BaseURL)},
		{"MODELS_DIR", setString(&c.Inference.ModelsDir)},
		{"INFERENCE_INPUT_SIZE", setInt(&c.Inference.InputSize)},
		{"INFERENCE_SCORE_THRESHOLD", setFloat(&c.Inference.ScoreThreshold)},
		{"CAMERA_DEVICE", setString(&c.Camera.Device)},
		{"CAMERA_WIDTH", setInt(&c.Camera.Width)},
		{"CAMERA_HEIGHT", setInt(&c.Camera.Height)},
		{"CAMERA_FPS", setInt(&c.Camera.FPS)},
		{"COOLDOWN", setDuration(&c.Cycle.Cooldown)},
		{"AUDIO_SAMPLE_RATE", setInt(&c.Audio.SampleRate)},
		{"PROBE_WORKERS", setInt(&c.Audio.ProbeWorkers)},
		{"LOG_LEVEL", setString(&c.Log.Level)},
		{"LOG_PRETTY", setBool(&c.Log.Pretty)},
		{"CATALOG_PATH", setString(&c.Catalog.Path)},
		{"CATALOG_SEED", setString(&c.Catalog.Seed)},
	}

	for _, v := range vars {
		raw := strings.TrimSpace(getenv(envPrefix + v.key))
		if raw == "" {
			continue
		}
		if err := v.apply(raw); err != nil {
			return errors.Wrapf(err, "config: %s%s", envPrefix, v.key)
		}
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setFloat(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func setList(dst *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
		return nil
	}
}
