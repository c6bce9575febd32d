// Package config holds all pipeline configuration, loaded env-first via
// viper with a .env overlay.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings.
type Config struct {
	// DataDir is the base data directory. The temporary clone convention is
	// <DataDir>/tmp_repos/<sanitized_name>_<timestamp>/.
	DataDir string `yaml:"data_dir"`

	// Ingestion settings
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Graph backend settings
	Graph GraphConfig `yaml:"graph"`

	// Enrichment settings
	Enrichment EnrichmentConfig `yaml:"enrichment"`

	// LLM settings
	LLM LLMConfig `yaml:"llm"`
}

type IngestionConfig struct {
	Concurrency int           `yaml:"concurrency"` // parser tasks in flight at once
	ChannelSize int           `yaml:"channel_size"`
	FileTimeout time.Duration `yaml:"file_timeout"`
}

type GraphConfig struct {
	Backend     string        `yaml:"backend"` // "neo4j" or "memory"
	URI         string        `yaml:"uri"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	BatchSize   int           `yaml:"batch_size"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryBase   time.Duration `yaml:"retry_base"`
}

type EnrichmentConfig struct {
	QuiescencePeriod time.Duration `yaml:"quiescence_period"`
	LLMBatchSize     int           `yaml:"llm_batch_size"`
	CachePath        string        `yaml:"cache_path"` // bbolt resolution cache
}

type LLMConfig struct {
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	RatePerMin  int           `yaml:"rate_per_min"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".codegraph", "data")
	return &Config{
		DataDir: dataDir,
		Ingestion: IngestionConfig{
			Concurrency: 25,
			ChannelSize: 256,
			FileTimeout: 30 * time.Second,
		},
		Graph: GraphConfig{
			Backend:    "neo4j",
			URI:        "bolt://localhost:7687",
			User:       "neo4j",
			Password:   "",
			Database:   "neo4j",
			BatchSize:  100,
			MaxRetries: 3,
			RetryBase:  200 * time.Millisecond,
		},
		Enrichment: EnrichmentConfig{
			QuiescencePeriod: 60 * time.Second,
			LLMBatchSize:     20,
			CachePath:        filepath.Join(dataDir, "resolution_cache.db"),
		},
		LLM: LLMConfig{
			Model:      "gpt-4o-mini",
			Timeout:    60 * time.Second,
			RatePerMin: 60,
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, and
// environment variables. Environment variables take precedence.
func Load() (*Config, error) {
	// Best effort: a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	cfg := Default()

	if dir := v.GetString("APP_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
		cfg.Enrichment.CachePath = filepath.Join(dir, "resolution_cache.db")
	}
	if uri := v.GetString("NEO4J_URI"); uri != "" {
		cfg.Graph.URI = uri
	}
	if user := v.GetString("NEO4J_USER"); user != "" {
		cfg.Graph.User = user
	}
	if pw := v.GetString("NEO4J_PASSWORD"); pw != "" {
		cfg.Graph.Password = pw
	}
	if db := v.GetString("NEO4J_DATABASE"); db != "" {
		cfg.Graph.Database = db
	}
	if backend := v.GetString("GRAPH_BACKEND"); backend != "" {
		cfg.Graph.Backend = backend
	}
	if key := v.GetString("OPENAI_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if model := v.GetString("OPENAI_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if q := v.GetInt("QUIESCENCE_PERIOD_SECONDS"); q > 0 {
		cfg.Enrichment.QuiescencePeriod = time.Duration(q) * time.Second
	}
	if t := v.GetInt("LLM_TIMEOUT_SECONDS"); t > 0 {
		cfg.LLM.Timeout = time.Duration(t) * time.Second
	}
	if c := v.GetInt("INGEST_CONCURRENCY"); c > 0 {
		cfg.Ingestion.Concurrency = c
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TempRepoBase returns the base directory for temporary clones.
func (c *Config) TempRepoBase() string {
	return filepath.Join(c.DataDir, "tmp_repos")
}
