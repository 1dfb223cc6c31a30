package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Backup    BackupConfig    `yaml:"backup"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds storage backend settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, sqlite (default: sqlite)
	Addrs            []string `yaml:"addrs"`  // redis only
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // sqlite only
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Primary       string                    `yaml:"primary"`  // provider name
	Fallback      string                    `yaml:"fallback"` // provider name, empty disables
	Dimensions    int                       `yaml:"dimensions"`
	BatchSize     int                       `yaml:"batch_size"`
	MaxInputChars int                       `yaml:"max_input_chars"`
	MaxRetries    int                       `yaml:"max_retries"`
	RetryBackoff  int                       `yaml:"retry_backoff_ms"`
	CacheTTLSec   int                       `yaml:"cache_ttl_sec"` // 0 = no expiry
	Providers     map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds one embedding provider's settings.
type ProviderConfig struct {
	Kind    string       `yaml:"kind"` // ollama, openai
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Model   string       `yaml:"model"`
	Budget  BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ChunkingConfig holds document splitting settings.
type ChunkingConfig struct {
	MinChunkSize int                     `yaml:"min_chunk_size"`
	Profiles     map[string]ChunkProfile `yaml:"profiles"` // keyed by format: pdf, text
}

// ChunkProfile is a per-format chunk size and overlap.
type ChunkProfile struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds hybrid search and pipeline settings.
type RetrievalConfig struct {
	Threshold          float64 `yaml:"threshold"`
	SemanticWeight     float64 `yaml:"semantic_weight"`
	LexicalWeight      float64 `yaml:"lexical_weight"`
	MetadataConfidence float64 `yaml:"metadata_confidence"`
	PerSourceCap       int     `yaml:"per_source_cap"`
	ContextCharBudget  int     `yaml:"context_char_budget"`
	EmbedTimeoutSec    int     `yaml:"embed_timeout_sec"`
	SearchTimeoutSec   int     `yaml:"search_timeout_sec"`
}

// LexicalConfig holds the expansion index settings.
type LexicalConfig struct {
	Path string `yaml:"path"` // empty = in-memory
}

// BackupConfig holds snapshot settings.
type BackupConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/ragdex.db"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 4
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 8192
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.RetryBackoff <= 0 {
		c.Embedding.RetryBackoff = 200
	}
	if c.Chunking.MinChunkSize <= 0 {
		c.Chunking.MinChunkSize = 50
	}
	if c.Retrieval.Threshold == 0 {
		c.Retrieval.Threshold = 0.25
	}
	if c.Retrieval.SemanticWeight == 0 {
		c.Retrieval.SemanticWeight = 0.6
	}
	if c.Retrieval.LexicalWeight == 0 {
		c.Retrieval.LexicalWeight = 0.4
	}
	if c.Retrieval.MetadataConfidence == 0 {
		c.Retrieval.MetadataConfidence = 0.95
	}
	if c.Retrieval.PerSourceCap <= 0 {
		c.Retrieval.PerSourceCap = 3
	}
	if c.Retrieval.ContextCharBudget <= 0 {
		c.Retrieval.ContextCharBudget = 6000
	}
	if c.Retrieval.EmbedTimeoutSec <= 0 {
		c.Retrieval.EmbedTimeoutSec = 10
	}
	if c.Retrieval.SearchTimeoutSec <= 0 {
		c.Retrieval.SearchTimeoutSec = 5
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "data/backups"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis driver")
		}
	case "sqlite":
		// path has a default
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"sqlite\", got %q", c.Database.Driver)
	}

	if c.Embedding.Primary == "" {
		return fmt.Errorf("embedding.primary is required")
	}
	if _, ok := c.Embedding.Providers[c.Embedding.Primary]; !ok {
		return fmt.Errorf("embedding.primary %q has no provider entry", c.Embedding.Primary)
	}
	if c.Embedding.Fallback != "" {
		if _, ok := c.Embedding.Providers[c.Embedding.Fallback]; !ok {
			return fmt.Errorf("embedding.fallback %q has no provider entry", c.Embedding.Fallback)
		}
	}
	for name, p := range c.Embedding.Providers {
		switch p.Kind {
		case "ollama", "openai":
			// ok
		default:
			return fmt.Errorf("embedding.providers.%s.kind must be \"ollama\" or \"openai\", got %q", name, p.Kind)
		}
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
	}

	for format := range c.Chunking.Profiles {
		if format != "pdf" && format != "text" {
			return fmt.Errorf("chunking.profiles key must be \"pdf\" or \"text\", got %q", format)
		}
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be in [0, 1], got %f", c.Retrieval.Threshold)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
