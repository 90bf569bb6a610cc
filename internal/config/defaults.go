package config

// Storage backend identifiers.
const (
	StorageBackendS3    = "s3"
	StorageBackendLocal = "local"
)

// Queue backend identifiers.
const (
	QueueBackendAMQP  = "amqp"
	QueueBackendRedis = "redis"
	QueueBackendNone  = "none"
)

const (
	defaultScratchDir        = "~/.local/share/clipforge/scratch"
	defaultLogDir            = "~/.local/share/clipforge/logs"
	defaultLocalRoot         = "~/.local/share/clipforge/objects"
	defaultServerBind        = "127.0.0.1:8790"
	defaultQueueName         = "clipforge-jobs"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultDownloaderBinary  = "curl"
	defaultFetchTimeout      = 60
	defaultFetchUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultPresignTTLSeconds = 3600
	defaultInputBucket       = "media-in"
	defaultOutputBucket      = "media-out"
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultStorageRegion     = "us-east-1"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Storage: Storage{
			Backend:           StorageBackendLocal,
			Region:            defaultStorageRegion,
			LocalRoot:         defaultLocalRoot,
			PresignTTLSeconds: defaultPresignTTLSeconds,
		},
		Queue: Queue{
			Backend: QueueBackendNone,
			Name:    defaultQueueName,
		},
		Tools: Tools{
			FFmpeg:     defaultFFmpegBinary,
			FFprobe:    defaultFFprobeBinary,
			Downloader: defaultDownloaderBinary,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeout,
			UserAgent:      defaultFetchUserAgent,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Failed:         true,
			Worker:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
