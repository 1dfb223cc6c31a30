package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "redis",
			Addrs:  []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{
			Primary: "local",
			Providers: map[string]ProviderConfig{
				"local": {
					Kind:    "ollama",
					BaseURL: "http://localhost:11434",
					Model:   "nomic-embed-text",
				},
			},
		},
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Providers["local"] = ProviderConfig{
		Kind:  "ollama",
		Model: "nomic-embed-text",
		Budget: BudgetConfig{
			DailyTokenLimit: 1000000,
			Action:          "invalid_action",
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.providers.local.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	validActions := []string{"", "warn", "reject"}

	for _, action := range validActions {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Providers["local"] = ProviderConfig{
				Kind:   "ollama",
				Model:  "nomic-embed-text",
				Budget: BudgetConfig{Action: action},
			}

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_SqliteNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Driver: "sqlite"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "postgres"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestValidate_MissingPrimaryProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Primary = "remote"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unconfigured primary provider")
	}
}

func TestValidate_UnknownProviderKind(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Providers["local"] = ProviderConfig{Kind: "cohere"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider kind")
	}
}

func TestValidate_UnknownChunkProfile(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking.Profiles = map[string]ChunkProfile{"docx": {ChunkSize: 1000}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown chunk profile format")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected driver=sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.BatchSize != 4 {
		t.Errorf("expected BatchSize=4, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected Dimensions=768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Chunking.MinChunkSize != 50 {
		t.Errorf("expected MinChunkSize=50, got %d", cfg.Chunking.MinChunkSize)
	}
	if cfg.Retrieval.Threshold != 0.25 {
		t.Errorf("expected Threshold=0.25, got %f", cfg.Retrieval.Threshold)
	}
	if cfg.Retrieval.SemanticWeight != 0.6 || cfg.Retrieval.LexicalWeight != 0.4 {
		t.Errorf("unexpected weights %f/%f", cfg.Retrieval.SemanticWeight, cfg.Retrieval.LexicalWeight)
	}
	if cfg.Retrieval.PerSourceCap != 3 {
		t.Errorf("expected PerSourceCap=3, got %d", cfg.Retrieval.PerSourceCap)
	}
	if cfg.Retrieval.ContextCharBudget != 6000 {
		t.Errorf("expected ContextCharBudget=6000, got %d", cfg.Retrieval.ContextCharBudget)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Embedding: EmbeddingConfig{
			BatchSize:  8,
			Dimensions: 1024,
		},
		Retrieval: RetrievalConfig{Threshold: 0.5, PerSourceCap: 5},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.BatchSize != 8 {
		t.Errorf("expected BatchSize=8, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Retrieval.Threshold != 0.5 {
		t.Errorf("expected Threshold=0.5, got %f", cfg.Retrieval.Threshold)
	}
	if cfg.Retrieval.PerSourceCap != 5 {
		t.Errorf("expected PerSourceCap=5, got %d", cfg.Retrieval.PerSourceCap)
	}
}
