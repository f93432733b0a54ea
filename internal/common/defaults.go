package common

// Pipeline and embedding defaults shared across the daemon, the CLI and
// the test helpers.
const (
	DefaultConcurrency     = 3
	DefaultVectorDimension = 1536
	DefaultBatchSize       = 100
	DefaultBatchChars      = 50000
	DefaultSearchLimit     = 5
	DefaultServerPort      = 6280
	DefaultEmbeddingModel  = "openai:text-embedding-3-small"
	DefaultRefreshCron     = "0 3 * * *"
)

// NewDefaultConfig returns the built-in configuration used when no TOML
// file is present.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: DefaultServerPort,
		},
		Storage: StorageConfig{
			Path:            "",
			VectorDimension: DefaultVectorDimension,
			CacheSizeKB:     64000,
			BusyTimeoutMS:   5000,
			WALEnabled:      true,
		},
		Pipeline: PipelineConfig{
			Concurrency: DefaultConcurrency,
			RecoverJobs: true,
		},
		Embeddings: EmbeddingsConfig{
			Model:             DefaultEmbeddingModel,
			BatchSize:         DefaultBatchSize,
			BatchChars:        DefaultBatchChars,
			RequestsPerSecond: 3,
		},
		Splitter: SplitterConfig{
			MinChunkSize:       500,
			PreferredChunkSize: 1500,
			MaxChunkSize:       5000,
		},
		Search: SearchConfig{
			DefaultLimit:  DefaultSearchLimit,
			ExpandContext: true,
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
			Cron:    DefaultRefreshCron,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"console"},
			TimeFormat: "15:04:05",
		},
	}
}
