package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AI struct {
		Provider         string  `yaml:"provider"`
		Model            string  `yaml:"model"`
		APIKey           string  `yaml:"api_key"`
		BaseURL          string  `yaml:"base_url"`
		MaxTokens        int     `yaml:"max_tokens"` // ceiling shared by prompt and response
		Temperature      float64 `yaml:"temperature"`
		TopP             float64 `yaml:"top_p"`
		FrequencyPenalty float64 `yaml:"frequency_penalty"`
		PresencePenalty  float64 `yaml:"presence_penalty"`
		TimeoutSeconds   int     `yaml:"timeout_seconds"`
		DryRun           bool    `yaml:"dry_run"`
	} `yaml:"ai"`
	Book struct {
		OutlineDir   string `yaml:"outline_dir"`
		OutputDir    string `yaml:"output_dir"`
		ReportDir    string `yaml:"report_dir"`
		Policy       string `yaml:"policy"`       // reuse-latest | always-new | interactive
		Regeneration string `yaml:"regeneration"` // replace | keep
		Glossary     bool   `yaml:"glossary"`
		Expanded     bool   `yaml:"expanded"`
	} `yaml:"book"`
	Storage struct {
		DB string `yaml:"db"`
	} `yaml:"storage"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	var cfg Config
	cfg.AI.Provider = "openai"
	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.MaxTokens = 4097
	cfg.AI.Temperature = 0.7
	cfg.AI.TopP = 1
	cfg.Book.OutlineDir = "outlines"
	cfg.Book.OutputDir = "fullbooks"
	cfg.Book.Policy = "interactive"
	cfg.Book.Regeneration = "replace"
	cfg.Storage.DB = "bookgen.db"
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if provider := os.Getenv("BOOKGEN_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("BOOKGEN_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if apiKey := os.Getenv("BOOKGEN_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	} else if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = providerKeyFromEnv(cfg.AI.Provider)
	}

	return cfg, nil
}

func providerKeyFromEnv(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// Validate reports the first setting that the pipeline cannot run with.
// Policy and regeneration names are normalized in place.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported ai provider: %q", c.AI.Provider)
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		return fmt.Errorf("ai model is required")
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("ai max_tokens must be positive, got %d", c.AI.MaxTokens)
	}
	if c.AI.TimeoutSeconds < 0 {
		return fmt.Errorf("ai timeout_seconds must not be negative")
	}
	// policy names are case-insensitive; they are stored normalized
	policy := strings.ToLower(strings.TrimSpace(c.Book.Policy))
	switch policy {
	case "reuse-latest", "always-new", "interactive":
		c.Book.Policy = policy
	default:
		return fmt.Errorf("unknown outline policy: %q", c.Book.Policy)
	}
	regen := strings.ToLower(strings.TrimSpace(c.Book.Regeneration))
	switch regen {
	case "":
		c.Book.Regeneration = "replace"
	case "replace", "keep":
		c.Book.Regeneration = regen
	default:
		return fmt.Errorf("unknown regeneration policy: %q", c.Book.Regeneration)
	}
	if strings.TrimSpace(c.Book.OutlineDir) == "" || strings.TrimSpace(c.Book.OutputDir) == "" {
		return fmt.Errorf("book outline_dir and output_dir are required")
	}
	return nil
}
