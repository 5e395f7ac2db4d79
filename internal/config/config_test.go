package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// TestLoad_Defaults verifies the built-in values when nothing is configured.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("test", []string{"--env-file", ""})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":8090" || cfg.Feed.BaseURL != "http://localhost:3000" {
		t.Errorf("unexpected addresses %+v", cfg)
	}
	if cfg.Feed.Timeout != 10*time.Second || cfg.Cycle.Cooldown != 2*time.Second {
		t.Errorf("unexpected timings feed=%v cooldown=%v", cfg.Feed.Timeout, cfg.Cycle.Cooldown)
	}
	if cfg.Inference.InputSize != 416 || cfg.Inference.ScoreThreshold != 0.5 {
		t.Errorf("unexpected inference config %+v", cfg.Inference)
	}
}

// TestLoad_Precedence verifies file < dotenv < environment < flags.
func TestLoad_Precedence(t *testing.T) {
	file := writeFile(t, "config.yaml", `
http_addr: ":9000"
feed:
  base_url: "http://file:3000"
  timeout: 3s
  oauth:
    scopes: [songs.read]
cycle:
  cooldown: 5s
camera:
  device: /dev/video2
log:
  level: debug
`)
	envFile := writeFile(t, "test.env", "MOODPLAYER_FEED_URL=http://dotenv:3000\nMOODPLAYER_CAMERA_DEVICE=/dev/video3\n")

	t.Setenv("MOODPLAYER_CAMERA_DEVICE", "/dev/video4")
	t.Setenv("MOODPLAYER_COOLDOWN", "7s")
	// godotenv sets this one; clear it afterwards.
	t.Setenv("MOODPLAYER_FEED_URL", "")
	os.Unsetenv("MOODPLAYER_FEED_URL")

	cfg, err := Load("test", []string{"--config", file, "--env-file", envFile, "--cooldown", "9s"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file only", cfg.HTTPAddr, ":9000"},
		{"file duration", cfg.Feed.Timeout, 3 * time.Second},
		{"file list", len(cfg.Feed.OAuth.Scopes), 1},
		{"file level", cfg.Log.Level, "debug"},
		{"dotenv over file", cfg.Feed.BaseURL, "http://dotenv:3000"},
		{"env over dotenv", cfg.Camera.Device, "/dev/video4"},
		{"flag over env", cfg.Cycle.Cooldown, 9 * time.Second},
		{"untouched default", cfg.Camera.FPS, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

// TestLoad_Errors verifies bad sources are reported.
func TestLoad_Errors(t *testing.T) {
	badYAML := writeFile(t, "bad.yaml", "feed: [unclosed")
	invalid := writeFile(t, "invalid.yaml", "cycle:\n  cooldown: 0s\n")

	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		invalid bool
	}{
		{name: "missing config file", args: []string{"--config", "/does/not/exist.yaml"}},
		{name: "malformed yaml", args: []string{"--config", badYAML}},
		{name: "explicit env file missing", args: []string{"--env-file", "/does/not/exist.env"}},
		{name: "bad env duration", env: map[string]string{"MOODPLAYER_FEED_TIMEOUT": "soon"}},
		{name: "bad env int", env: map[string]string{"MOODPLAYER_CAMERA_FPS": "fast"}},
		{name: "unknown flag", args: []string{"--nope"}},
		{name: "zero cooldown", args: []string{"--config", invalid}, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := tt.args
			if len(args) < 2 || args[0] != "--env-file" {
				args = append([]string{"--env-file", ""}, args...)
			}
			_, err := Load("test", args)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.invalid && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

// TestConfig_Validate verifies each rule independently.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty feed url", func(c *Config) { c.Feed.BaseURL = " " }},
		{"zero feed timeout", func(c *Config) { c.Feed.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Feed.MaxRetries = -1 }},
		{"empty inference url", func(c *Config) { c.Inference.BaseURL = "" }},
		{"threshold above one", func(c *Config) { c.Inference.ScoreThreshold = 1.5 }},
		{"zero camera width", func(c *Config) { c.Camera.Width = 0 }},
		{"negative cooldown", func(c *Config) { c.Cycle.Cooldown = -time.Second }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"oauth without token url", func(c *Config) { c.Feed.OAuth.ClientID = "id" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}
