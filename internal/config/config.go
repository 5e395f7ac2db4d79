// Package config loads process configuration. Sources are applied in order,
// each overriding the previous one: built-in defaults, an optional YAML file,
// a .env file, MOODPLAYER_* environment variables, then command-line flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MOODPLAYER_"

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete player and song service configuration.
type Config struct {
	HTTPAddr  string          `yaml:"http_addr"`
	SongsAddr string          `yaml:"songs_addr"`
	Feed      FeedConfig      `yaml:"feed"`
	Inference InferenceConfig `yaml:"inference"`
	Camera    CameraConfig    `yaml:"camera"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Audio     AudioConfig     `yaml:"audio"`
	Log       LogConfig       `yaml:"log"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// FeedConfig configures the song recommendation client.
type FeedConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	OAuth        OAuthConfig   `yaml:"oauth"`
}

// OAuthConfig enables client-credentials auth against the feed when ClientID
// is set.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// InferenceConfig configures the face-expression sidecar.
type InferenceConfig struct {
	BaseURL        string  `yaml:"base_url"`
	ModelsDir      string  `yaml:"models_dir"`
	InputSize      int     `yaml:"input_size"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// CameraConfig contains capture device settings
type CameraConfig struct {
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// CycleConfig tunes the detection loop.
type CycleConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

// AudioConfig contains speaker settings
type AudioConfig struct {
	SampleRate   int `yaml:"sample_rate"`
	ProbeWorkers int `yaml:"probe_workers"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CatalogConfig configures the reference song service storage.
type CatalogConfig struct {
	Path string `yaml:"path"`
	Seed string `yaml:"seed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:  ":8090",
		SongsAddr: ":3000",
		Feed: FeedConfig{
			BaseURL:      "http://localhost:3000",
			Timeout:      10 * time.Second,
			MaxRetries:   2,
			RetryBackoff: 250 * time.Millisecond,
		},
		Inference: InferenceConfig{
			BaseURL:        "http://localhost:8500",
			ModelsDir:      "/models",
			InputSize:      416,
			ScoreThreshold: 0.5,
		},
		Camera: CameraConfig{
			Device: "/dev/video0",
			Width:  640,
			Height: 480,
			FPS:    15,
		},
		Cycle:   CycleConfig{Cooldown: 2 * time.Second},
		Audio:   AudioConfig{SampleRate: 44100, ProbeWorkers: 2},
		Log:     LogConfig{Level: "info"},
		Catalog: CatalogConfig{Path: "songs.db"},
	}
}

// Load builds the configuration for a process invoked with args (without the
// program name).
func Load(name string, args []string) (Config, error) {
	// First pass only discovers the file locations.
	var configPath, envFile string
	probe := newFlagSet(name, &Config{}, &configPath, &envFile)
	if err := probe.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(envFile, probe.Changed("env-file")); err != nil {
		return Config{}, err
	}
	if configPath == "" {
		configPath = os.Getenv(envPrefix + "CONFIG")
	}

	cfg := Default()
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}

	// Second pass binds to the merged values, so only flags that were set
	// override them.
	fs := newFlagSet(name, &cfg, &configPath, &envFile)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet(name string, cfg *Config, configPath, envFile *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(configPath, "config", "", "path to a YAML config file")
	fs.StringVar(envFile, "env-file", ".env", "path to a dotenv file")

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "player control API listen address")
	fs.StringVar(&cfg.SongsAddr, "songs-addr", cfg.SongsAddr, "song service listen address")
	fs.StringVar(&cfg.Feed.BaseURL, "feed-url", cfg.Feed.BaseURL, "song feed base URL")
	fs.DurationVar(&cfg.Feed.Timeout, "feed-timeout", cfg.Feed.Timeout, "song feed request timeout")
	fs.IntVar(&cfg.Feed.MaxRetries, "feed-retries", cfg.Feed.MaxRetries, "song feed retries on transient errors")
	fs.StringVar(&cfg.Inference.BaseURL, "inference-url", cfg.Inference.BaseURL, "face-expression sidecar base URL")
	fs.StringVar(&cfg.Inference.ModelsDir, "models-dir", cfg.Inference.ModelsDir, "directory holding the model bundles")
	fs.StringVar(&cfg.Camera.Device, "camera", cfg.Camera.Device, "video capture device")
	fs.DurationVar(&cfg.Cycle.Cooldown, "cooldown", cfg.Cycle.Cooldown, "pause between a published list and the next detection")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Log.Pretty, "log-pretty", cfg.Log.Pretty, "human-readable console logs")
	fs.StringVar(&cfg.Catalog.Path, "catalog", cfg.Catalog.Path, "sqlite catalog path")
	fs.StringVar(&cfg.Catalog.Seed, "seed", cfg.Catalog.Seed, "YAML or JSON file of songs loaded at startup")
	return fs
}

func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrapf(err, "config: env file %s", path)
	}
	// Existing environment variables win over the file.
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "config: load env file %s", path)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "config: failed to read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "config: failed to parse config")
	}
	return nil
}

// Validate checks the values every process depends on.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(strings.TrimSpace(c.Feed.BaseURL) != "", "feed.base_url is required")
	check(c.Feed.Timeout > 0, "feed.timeout must be positive")
	check(c.Feed.MaxRetries >= 0, "feed.max_retries must not be negative")
	check(strings.TrimSpace(c.Inference.BaseURL) != "", "inference.base_url is required")
	check(c.Inference.InputSize > 0, "inference.input_size must be positive")
	check(c.Inference.ScoreThreshold > 0 && c.Inference.ScoreThreshold <= 1, "inference.score_threshold must be in (0, 1]")
	check(c.Camera.Width > 0 && c.Camera.Height > 0, "camera size must be positive")
	check(c.Camera.FPS > 0, "camera.fps must be positive")
	check(c.Cycle.Cooldown > 0, "cycle.cooldown must be positive")
	check(c.Audio.SampleRate > 0, "audio.sample_rate must be positive")
	check(c.Audio.ProbeWorkers > 0, "audio.probe_workers must be positive")
	if (c.Feed.OAuth.ClientID == "") != (c.Feed.OAuth.TokenURL == "") {
		problems = append(problems, "feed.oauth needs both client_id and token_url")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level "+c.Log.Level+" is not a level")
	}

	if len(problems) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
