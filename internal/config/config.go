package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Values are layered:
// built-in defaults, then the YAML config file, then CODESEER_* environment
// variables (highest precedence).
type Config struct {
	Provider     ProviderConfig     `yaml:"provider"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Retry        RetryConfig        `yaml:"retry"`
	Budget       BudgetConfig       `yaml:"budget"`
	Planner      PlannerConfig      `yaml:"planner"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Log          LogConfig          `yaml:"log"`
}

// ProviderConfig describes the generation/embedding provider endpoint.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embed_model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	CacheCapacity int `yaml:"cache_capacity"`
}

// RetryConfig controls the generation retry policy. BaseDelay is a Go
// duration string ("2s"); invalid values fall back to the default at the
// wiring site.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
}

type BudgetConfig struct {
	MaxUnits         int `yaml:"max_units"`
	MaxSnippets      int `yaml:"max_snippets"`
	MinFragmentUnits int `yaml:"min_fragment_units"`
}

type PlannerConfig struct {
	MaxSubQuestions int `yaml:"max_subquestions"`
}

// OrchestratorConfig selects the partial-failure policy ("abort" or
// "best-effort") and the sub-question worker count (<=1 means sequential).
type OrchestratorConfig struct {
	Policy      string `yaml:"policy"`
	Parallelism int    `yaml:"parallelism"`
}

type IngestConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	PollInterval string `yaml:"poll_interval"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
	MaxConns  int    `yaml:"max_conns"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o",
			EmbedModel:  "text-embedding-3-small",
			Temperature: 0.2,
			MaxTokens:   4096,
		},
		Retrieval: RetrievalConfig{
			TopK:          10,
			CacheCapacity: 100,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "2s",
		},
		Budget: BudgetConfig{
			MaxUnits:         5000,
			MaxSnippets:      10,
			MinFragmentUnits: 100,
		},
		Planner: PlannerConfig{
			MaxSubQuestions: 4,
		},
		Orchestrator: OrchestratorConfig{
			Policy:      "abort",
			Parallelism: 1,
		},
		Ingest: IngestConfig{
			ChunkSize:    1600,
			ChunkOverlap: 200,
			PollInterval: "500ms",
		},
		Server: ServerConfig{
			Port:     4600,
			MaxConns: 64,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location,
// $XDG_CONFIG_HOME/codeseer/config.yaml (or the platform equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "codeseer", "config.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".codeseer"
	}
	return filepath.Join(dir, ".codeseer")
}

// Load reads configuration from path (DefaultPath() if empty). A missing
// file is not an error; defaults plus environment overrides apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No config file; defaults + env only.
	case err != nil:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODESEER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("CODESEER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("CODESEER_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("CODESEER_EMBED_MODEL"); v != "" {
		cfg.Provider.EmbedModel = v
	}
	if v := os.Getenv("CODESEER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("CODESEER_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := os.Getenv("CODESEER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CODESEER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func (c Config) validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("missing required config: provider API key. " +
			"Set it in the config file (provider.api_key) or via CODESEER_API_KEY")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.CacheCapacity <= 0 {
		return fmt.Errorf("retrieval.cache_capacity must be positive, got %d", c.Retrieval.CacheCapacity)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	switch c.Orchestrator.Policy {
	case "abort", "best-effort":
	default:
		return fmt.Errorf("orchestrator.policy must be %q or %q, got %q", "abort", "best-effort", c.Orchestrator.Policy)
	}
	return nil
}
