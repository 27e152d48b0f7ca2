package config

const (
	defaultStagingDir             = "~/.local/share/bookspool/staging"
	defaultLogDir                 = "~/.local/share/bookspool/logs"
	defaultSourceRequestTimeout   = 30
	defaultSourceDownloadTimeout  = 120
	defaultSourceMaxRetries       = 3
	defaultEstimatedBitrateKbps   = 128
	defaultMaxSegmentMiB          = 150
	defaultMinSegmentMinutes      = 60
	defaultMaxSegmentMinutes      = 120
	defaultFFmpegBinary           = "ffmpeg"
	defaultCombineBitrate         = "128k"
	defaultCombineTimeout         = 1800
	defaultDriveRootFolder        = "audiobooks"
	defaultDriveRequestTimeout    = 60
	defaultPersistIntervalSeconds = 5
	defaultErrorSkipDelaySeconds  = 2
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Source: Source{
			RequestTimeout:       defaultSourceRequestTimeout,
			DownloadTimeout:      defaultSourceDownloadTimeout,
			MaxRetries:           defaultSourceMaxRetries,
			EstimatedBitrateKbps: defaultEstimatedBitrateKbps,
		},
		Planner: Planner{
			MaxSegmentMiB:     defaultMaxSegmentMiB,
			MinSegmentMinutes: defaultMinSegmentMinutes,
			MaxSegmentMinutes: defaultMaxSegmentMinutes,
		},
		Combine: Combine{
			FFmpegBinary: defaultFFmpegBinary,
			Bitrate:      defaultCombineBitrate,
			Timeout:      defaultCombineTimeout,
		},
		Drive: Drive{
			RootFolder:     defaultDriveRootFolder,
			RequestTimeout: defaultDriveRequestTimeout,
		},
		Playback: Playback{
			PersistIntervalSeconds: defaultPersistIntervalSeconds,
			ErrorSkipDelaySeconds:  defaultErrorSkipDelaySeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Fetch:          true,
			Upload:         true,
			Playback:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
