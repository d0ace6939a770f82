package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COSTBOOK_CONFIG", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("JUDGE_MODEL", "")

	cfg := Load()

	if cfg.Embedding.Dimension != 1536 || cfg.Embedding.BatchSize != 200 {
		t.Fatalf("embedding defaults = %+v", cfg.Embedding)
	}
	if cfg.Resolver.MergeThreshold != 0.98 || cfg.Resolver.JudgeThreshold != 0.92 {
		t.Fatalf("resolver defaults = %+v", cfg.Resolver)
	}
	if cfg.Pricing.Strategy != "adaptive" {
		t.Fatalf("pricing default = %q", cfg.Pricing.Strategy)
	}
	if len(cfg.Sources) == 0 {
		t.Fatal("default sources missing")
	}
	if len(cfg.Parser.LaborKeywords) == 0 {
		t.Fatal("default labor keywords missing")
	}
}

func TestLoadFileOverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
embedding:
  model: custom-embed
  dimension: 768
resolver:
  mergeThreshold: 0.99
pricing:
  strategy: max
sources:
  - name: archive
    extractor: csv
    glob: archive/*.csv
    options:
      delimiter: ";"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("COSTBOOK_CONFIG", path)
	t.Setenv("DATABASE_DSN", "postgres://env/db")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("JUDGE_MODEL", "")

	cfg := Load()

	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Embedding.Model != "custom-embed" || cfg.Embedding.Dimension != 768 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	// Unset file fields keep their defaults.
	if cfg.Embedding.BatchSize != 200 {
		t.Errorf("batch size = %d, want default 200", cfg.Embedding.BatchSize)
	}
	if cfg.Resolver.MergeThreshold != 0.99 || cfg.Resolver.JudgeThreshold != 0.92 {
		t.Errorf("resolver = %+v", cfg.Resolver)
	}
	if cfg.Pricing.Strategy != "max" {
		t.Errorf("strategy = %q", cfg.Pricing.Strategy)
	}
	if cfg.Database.DSN != "postgres://env/db" {
		t.Errorf("dsn = %q, env must win", cfg.Database.DSN)
	}
	if cfg.Embedding.APIKey != "sk-test" || cfg.Judge.APIKey != "sk-test" {
		t.Errorf("api keys = %q/%q, want filled from OPENAI_API_KEY", cfg.Embedding.APIKey, cfg.Judge.APIKey)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Extractor != "csv" {
		t.Errorf("sources = %+v", cfg.Sources)
	}
}

func TestEnvAPIKeyOverridesFileKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
embedding:
  apiKey: file-embed-key
judge:
  apiKey: file-judge-key
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("COSTBOOK_CONFIG", path)
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("JUDGE_MODEL", "")

	cfg := Load()
	if cfg.Embedding.APIKey != "sk-env" || cfg.Judge.APIKey != "sk-env" {
		t.Fatalf("api keys = %q/%q, env must win over file values", cfg.Embedding.APIKey, cfg.Judge.APIKey)
	}

	// Without the env variable the file keys stand.
	t.Setenv("OPENAI_API_KEY", "")
	cfg = Load()
	if cfg.Embedding.APIKey != "file-embed-key" || cfg.Judge.APIKey != "file-judge-key" {
		t.Fatalf("api keys = %q/%q, want the file values kept", cfg.Embedding.APIKey, cfg.Judge.APIKey)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	t.Setenv("COSTBOOK_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Load()
	if cfg.Embedding.Dimension != 1536 {
		t.Fatalf("missing file must yield defaults, got %+v", cfg.Embedding)
	}
}
