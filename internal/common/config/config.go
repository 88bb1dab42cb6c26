package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Orchestrator OrchestratorConfig      `mapstructure:"orchestrator"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	APIs         APIsConfig              `mapstructure:"apis"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Port        int    `mapstructure:"port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	PlacesIndex string   `mapstructure:"places_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// OrchestratorConfig tunes the query engine. Durations are milliseconds.
type OrchestratorConfig struct {
	MaxConcurrency        int    `mapstructure:"max_concurrency"`
	MaxExecutionTime      int    `mapstructure:"max_execution_time"`
	MaxQueryLength        int    `mapstructure:"max_query_length"`
	DefaultCacheStrategy  string `mapstructure:"default_cache_strategy"`
	DefaultResponseFormat string `mapstructure:"default_response_format"`
	CacheBackend          string `mapstructure:"cache_backend"`
	CacheKeyPrefix        string `mapstructure:"cache_key_prefix"`
	SweepInterval         int    `mapstructure:"sweep_interval"`
	PrewarmTimeout        int    `mapstructure:"prewarm_timeout"`
	OperationRegistryPath string `mapstructure:"operation_registry_path"`
}

// HTTPAPIConfig describes one JSON-over-HTTP data source.
type HTTPAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// Enabled reports whether the API has an endpoint configured.
func (a HTTPAPIConfig) Enabled() bool {
	return a.BaseURL != ""
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL     string  `mapstructure:"base_url"`
		APIKey      string  `mapstructure:"api_key"`
		Timeout     int     `mapstructure:"timeout"` // milliseconds
		MaxTokens   int     `mapstructure:"max_tokens"`
		Temperature float64 `mapstructure:"temperature"`
		MaxRetries  int     `mapstructure:"max_retries"`
	} `mapstructure:"genai"`

	WebSearch struct {
		HTTPAPIConfig `mapstructure:",squash"`
		EngineID      string `mapstructure:"engine_id"`
	} `mapstructure:"web_search"`

	Weather       HTTPAPIConfig `mapstructure:"weather"`
	Events        HTTPAPIConfig `mapstructure:"events"`
	Geocode       HTTPAPIConfig `mapstructure:"geocode"`
	IPGeolocation HTTPAPIConfig `mapstructure:"ip_geolocation"`
	Photos        HTTPAPIConfig `mapstructure:"photos"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
