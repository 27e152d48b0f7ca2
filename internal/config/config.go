package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Source contains configuration for the audiobook web source.
type Source struct {
	BaseURL              string `toml:"base_url"`
	RequestTimeout       int    `toml:"request_timeout"`
	DownloadTimeout      int    `toml:"download_timeout"`
	MaxRetries           int    `toml:"max_retries"`
	EstimatedBitrateKbps int    `toml:"estimated_bitrate_kbps"`
}

// Planner contains the segment sizing bounds.
type Planner struct {
	MaxSegmentMiB     int `toml:"max_segment_mib"`
	MinSegmentMinutes int `toml:"min_segment_minutes"`
	MaxSegmentMinutes int `toml:"max_segment_minutes"`
}

// Combine contains configuration for the external audio combiner.
type Combine struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Bitrate      string `toml:"bitrate"`
	Timeout      int    `toml:"timeout"`
}

// Drive contains configuration for the cloud file store.
type Drive struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	RootFolder     string `toml:"root_folder"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Playback contains configuration for the playback session.
type Playback struct {
	PersistIntervalSeconds int `toml:"persist_interval_seconds"`
	ErrorSkipDelaySeconds  int `toml:"error_skip_delay_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Fetch          bool   `toml:"fetch"`
	Upload         bool   `toml:"upload"`
	Playback       bool   `toml:"playback"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bookspool.
//
// Configuration sections by subsystem:
//   - Paths: staging and log directories
//   - Source: audiobook web source and download retry behavior
//   - Planner: segment duration/size bounds
//   - Combine: external ffmpeg combiner settings
//   - Drive: cloud file store endpoint and credential
//   - Playback: session persistence and error-skip timing
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Planner       Planner       `toml:"planner"`
	Combine       Combine       `toml:"combine"`
	Drive         Drive         `toml:"drive"`
	Playback      Playback      `toml:"playback"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bookspool/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bookspool.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the toolchain writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxSegmentBytes returns the segment size ceiling in bytes.
func (c *Config) MaxSegmentBytes() int64 {
	return int64(c.Planner.MaxSegmentMiB) * 1024 * 1024
}

// MinSegmentSeconds returns the preferred minimum segment duration in seconds.
func (c *Config) MinSegmentSeconds() float64 {
	return float64(c.Planner.MinSegmentMinutes) * 60
}

// MaxSegmentSeconds returns the segment duration ceiling in seconds.
func (c *Config) MaxSegmentSeconds() float64 {
	return float64(c.Planner.MaxSegmentMinutes) * 60
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
