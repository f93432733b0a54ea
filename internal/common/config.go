package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all service settings, loaded from TOML files with
// environment variable overrides.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Embeddings EmbeddingsConfig `toml:"embeddings"`
	Splitter   SplitterConfig   `toml:"splitter"`
	Search     SearchConfig     `toml:"search"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Logging    LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type StorageConfig struct {
	// Path is the store directory. Empty means the per-user default
	// resolved by ResolveStorePath.
	Path            string `toml:"path"`
	VectorDimension int    `toml:"vector_dimension"`
	CacheSizeKB     int    `toml:"cache_size_kb"`
	BusyTimeoutMS   int    `toml:"busy_timeout_ms"`
	WALEnabled      bool   `toml:"wal_enabled"`
}

type PipelineConfig struct {
	Concurrency int  `toml:"concurrency"`
	RecoverJobs bool `toml:"recover_jobs"`
	// ServerURL switches the pipeline factory to a remote client
	// talking to an external worker over HTTP.
	ServerURL string `toml:"server_url"`
}

type EmbeddingsConfig struct {
	// Model is a "provider:model" pair, e.g. "openai:text-embedding-3-small".
	Model             string  `toml:"model"`
	BatchSize         int     `toml:"batch_size"`
	BatchChars        int     `toml:"batch_chars"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type SplitterConfig struct {
	MinChunkSize       int `toml:"min_chunk_size"`
	PreferredChunkSize int `toml:"preferred_chunk_size"`
	MaxChunkSize       int `toml:"max_chunk_size"`
}

type SearchConfig struct {
	DefaultLimit  int  `toml:"default_limit"`
	ExpandContext bool `toml:"expand_context"`
}

type SchedulerConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`
	Output     []string `toml:"output"` // "console", "file"
	TimeFormat string   `toml:"time_format"`
}

// LoadFromFile loads configuration from a single TOML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple TOML files, merged in
// order on top of the defaults. Missing files are skipped so callers can
// pass optional override paths. Environment variables are applied last.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies SCRIPTOR_* variables plus the handful of
// DOCS_MCP_* variables honored for compatibility with existing deployments.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SCRIPTOR_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("SCRIPTOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("SCRIPTOR_STORAGE_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("DOCS_MCP_STORE_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("SCRIPTOR_PIPELINE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Pipeline.Concurrency = n
		}
	}
	if v := os.Getenv("SCRIPTOR_SERVER_URL"); v != "" {
		config.Pipeline.ServerURL = v
	}
	if v := os.Getenv("DOCS_MCP_EMBEDDING_MODEL"); v != "" {
		config.Embeddings.Model = v
	}
	if v := os.Getenv("DOCS_MCP_EMBEDDING_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Embeddings.BatchSize = n
		}
	}
	if v := os.Getenv("DOCS_MCP_EMBEDDING_BATCH_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Embeddings.BatchChars = n
		}
	}
	if v := os.Getenv("SCRIPTOR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SCRIPTOR_LOG_OUTPUT"); v != "" {
		parts := strings.Split(v, ",")
		outputs := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				outputs = append(outputs, p)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command line flag values over the loaded
// configuration. Zero values leave the configuration untouched.
func ApplyFlagOverrides(config *Config, host string, port int) {
	if host != "" {
		config.Server.Host = host
	}
	if port > 0 {
		config.Server.Port = port
	}
}
