package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	c.normalizeCombine()
	c.normalizeDrive()
	c.normalizePlayback()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	if c.Source.RequestTimeout <= 0 {
		c.Source.RequestTimeout = defaultSourceRequestTimeout
	}
	if c.Source.DownloadTimeout <= 0 {
		c.Source.DownloadTimeout = defaultSourceDownloadTimeout
	}
	if c.Source.MaxRetries <= 0 {
		c.Source.MaxRetries = defaultSourceMaxRetries
	}
	if c.Source.EstimatedBitrateKbps <= 0 {
		c.Source.EstimatedBitrateKbps = defaultEstimatedBitrateKbps
	}
}

func (c *Config) normalizeCombine() {
	c.Combine.FFmpegBinary = strings.TrimSpace(c.Combine.FFmpegBinary)
	if c.Combine.FFmpegBinary == "" {
		c.Combine.FFmpegBinary = defaultFFmpegBinary
	}
	c.Combine.Bitrate = strings.TrimSpace(c.Combine.Bitrate)
	if c.Combine.Bitrate == "" {
		c.Combine.Bitrate = defaultCombineBitrate
	}
	if c.Combine.Timeout <= 0 {
		c.Combine.Timeout = defaultCombineTimeout
	}
}

func (c *Config) normalizeDrive() {
	if c.Drive.Token == "" {
		if value, ok := os.LookupEnv("BOOKSPOOL_DRIVE_TOKEN"); ok {
			c.Drive.Token = strings.TrimSpace(value)
		}
	}
	c.Drive.BaseURL = strings.TrimRight(strings.TrimSpace(c.Drive.BaseURL), "/")
	c.Drive.RootFolder = strings.TrimSpace(c.Drive.RootFolder)
	if c.Drive.RootFolder == "" {
		c.Drive.RootFolder = defaultDriveRootFolder
	}
	if c.Drive.RequestTimeout <= 0 {
		c.Drive.RequestTimeout = defaultDriveRequestTimeout
	}
}

func (c *Config) normalizePlayback() {
	if c.Playback.PersistIntervalSeconds <= 0 {
		c.Playback.PersistIntervalSeconds = defaultPersistIntervalSeconds
	}
	if c.Playback.ErrorSkipDelaySeconds <= 0 {
		c.Playback.ErrorSkipDelaySeconds = defaultErrorSkipDelaySeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
