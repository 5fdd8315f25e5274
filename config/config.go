package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the comparison service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Share     ShareConfig     `mapstructure:"share"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Normalize applies defaults for unset server values.
func (s ServerConfig) Normalize() ServerConfig {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = ":10001"
	}
	if s.Address[0] != ':' && !strings.Contains(s.Address, ":") {
		s.Address = ":" + s.Address
	}
	if len(s.AllowOrigins) == 0 {
		s.AllowOrigins = []string{"*"}
	}
	return s
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string        `mapstructure:"type"` // openai, groq, deepseek, anthropic, gemini
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CostPer1K  float64       `mapstructure:"cost_per_1k_input"`
	// CostPer1KOutput is billed per thousand completion tokens.
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig names the provider used for each pipeline stage
type LLMRoutingConfig struct {
	Context           string `mapstructure:"context"`
	Cost              string `mapstructure:"cost"`
	Performance       string `mapstructure:"performance"`
	Risk              string `mapstructure:"risk"`
	Narrative         string `mapstructure:"narrative"`
	NarrativeFallback string `mapstructure:"narrative_fallback"`
}

var knownProviderTypes = map[string]struct{}{
	"openai":    {},
	"groq":      {},
	"deepseek":  {},
	"anthropic": {},
	"gemini":    {},
}

// Normalize fills per-type defaults for base URLs, models and timeouts.
func (c LLMConfig) Normalize() LLMConfig {
	providers := make(map[string]LLMProvider, len(c.Providers))
	for name, p := range c.Providers {
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		if p.Type == "" {
			p.Type = strings.ToLower(name)
		}
		if p.Timeout <= 0 {
			p.Timeout = 30 * time.Second
		}
		if p.MaxRetries < 0 {
			p.MaxRetries = 0
		}
		switch p.Type {
		case "openai":
			if p.BaseURL == "" {
				p.BaseURL = "https://api.openai.com/v1"
			}
			if p.Model == "" {
				p.Model = "gpt-4o-mini"
			}
		case "groq":
			if p.BaseURL == "" {
				p.BaseURL = "https://api.groq.com/openai/v1"
			}
			if p.Model == "" {
				p.Model = "llama-3.3-70b-versatile"
			}
		case "deepseek":
			if p.BaseURL == "" {
				p.BaseURL = "https://api.deepseek.com/v1"
			}
			if p.Model == "" {
				p.Model = "deepseek-chat"
			}
		case "anthropic":
			if p.Model == "" {
				p.Model = "claude-3-5-haiku-latest"
			}
		case "gemini":
			if p.Model == "" {
				p.Model = "gemini-1.5-flash"
			}
		}
		providers[name] = p
	}
	c.Providers = providers
	return c
}

// Validate ensures provider types are supported and routing targets exist.
func (c LLMConfig) Validate() error {
	for name, p := range c.Providers {
		if _, ok := knownProviderTypes[p.Type]; !ok {
			return fmt.Errorf("llm.providers.%s.type %q unsupported", name, p.Type)
		}
	}
	routes := map[string]string{
		"context":            c.Routing.Context,
		"cost":               c.Routing.Cost,
		"performance":        c.Routing.Performance,
		"risk":               c.Routing.Risk,
		"narrative":          c.Routing.Narrative,
		"narrative_fallback": c.Routing.NarrativeFallback,
	}
	for stage, target := range routes {
		if target == "" {
			continue
		}
		if _, ok := c.Providers[target]; !ok {
			return fmt.Errorf("llm.routing.%s references unknown provider %q", stage, target)
		}
	}
	return nil
}

// AgentsConfig contains agent-specific settings
type AgentsConfig struct {
	SpecialistTimeout time.Duration `mapstructure:"specialist_timeout"`
	NarrativeTimeout  time.Duration `mapstructure:"narrative_timeout"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
}

// Normalize applies default timeouts.
func (a AgentsConfig) Normalize() AgentsConfig {
	if a.SpecialistTimeout <= 0 {
		a.SpecialistTimeout = 20 * time.Second
	}
	if a.NarrativeTimeout <= 0 {
		a.NarrativeTimeout = 60 * time.Second
	}
	if a.MaxConcurrentRuns <= 0 {
		a.MaxConcurrentRuns = 8
	}
	return a
}

// BudgetConfig defines per-run usage guardrails. Zero means unlimited.
type BudgetConfig struct {
	MaxCost        float64 `mapstructure:"max_cost"`
	MaxTokens      int64   `mapstructure:"max_tokens"`
	MaxTimeSeconds int64   `mapstructure:"max_time_seconds"`
}

func (b BudgetConfig) Validate() error {
	if b.MaxCost < 0 {
		return fmt.Errorf("budget.max_cost cannot be negative")
	}
	if b.MaxTokens < 0 {
		return fmt.Errorf("budget.max_tokens cannot be negative")
	}
	if b.MaxTimeSeconds < 0 {
		return fmt.Errorf("budget.max_time_seconds cannot be negative")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	// OTLPEndpoint receives pipeline traces over gRPC; empty disables export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"` // auto, postgres, redis, file, memory
	Redis    RedisConfig    `mapstructure:"redis"`
	File     FileConfig     `mapstructure:"file"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

var knownBackends = map[string]struct{}{"auto": {}, "postgres": {}, "redis": {}, "file": {}, "memory": {}}

func (s StorageConfig) Validate() error {
	if _, ok := knownBackends[s.Backend]; !ok {
		return fmt.Errorf("storage.backend %q unsupported", s.Backend)
	}
	switch s.Backend {
	case "postgres":
		return s.Postgres.Validate()
	case "redis":
		return s.Redis.Validate()
	case "file":
		if strings.TrimSpace(s.File.DataDir) == "" {
			return fmt.Errorf("storage.file.data_dir required")
		}
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Configured reports whether enough fields are set to attempt a connection.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.Host) != ""
}

// FileConfig contains file storage settings
type FileConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// Configured reports whether enough fields are set to attempt a connection.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || (strings.TrimSpace(p.Host) != "" && strings.TrimSpace(p.DBName) != "")
}

// DSN builds a postgres connection string from the URL or discrete fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// ShareConfig controls the share-link store.
type ShareConfig struct {
	RecentLimit int `mapstructure:"recent_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.namespace", "techbrief")

	v.SetDefault("llm.providers.groq.type", "groq")
	v.SetDefault("llm.providers.groq.api_key", "")
	v.SetDefault("llm.providers.deepseek.type", "deepseek")
	v.SetDefault("llm.providers.deepseek.api_key", "")
	v.SetDefault("llm.providers.gemini.type", "gemini")
	v.SetDefault("llm.providers.gemini.api_key", "")
	v.SetDefault("llm.providers.anthropic.type", "anthropic")
	v.SetDefault("llm.providers.anthropic.api_key", "")
	v.SetDefault("llm.routing.context", "groq")
	v.SetDefault("llm.routing.cost", "deepseek")
	v.SetDefault("llm.routing.performance", "groq")
	v.SetDefault("llm.routing.risk", "groq")
	v.SetDefault("llm.routing.narrative", "gemini")
	v.SetDefault("llm.routing.narrative_fallback", "groq")

	v.SetDefault("agents.specialist_timeout", "20s")
	v.SetDefault("agents.narrative_timeout", "60s")
	v.SetDefault("agents.max_concurrent_runs", 8)

	v.SetDefault("storage.backend", "auto")
	v.SetDefault("storage.file.data_dir", "data")
	v.SetDefault("storage.redis.ttl", "168h")
	v.SetDefault("share.recent_limit", 10)
}

// Load reads configuration from path (or the default search paths) plus
// TECHBRIEF_* environment variables. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("TECHBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Server = cfg.Server.Normalize()
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Agents = cfg.Agents.Normalize()
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Share.RecentLimit <= 0 {
		cfg.Share.RecentLimit = 10
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Budget.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads config and panics on error; used at process startup.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
