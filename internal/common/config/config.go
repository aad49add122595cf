// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Redis     RedisConfig             `mapstructure:"redis"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Sources   SourcesConfig           `mapstructure:"sources"`
	Functions FunctionsConfig         `mapstructure:"functions"`
	Secrets   SecretsConfig           `mapstructure:"secrets"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Tracing   TracingConfig           `mapstructure:"tracing"`
	Server    ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // job retries handed back to Zeebe
}

// SourcesConfig holds the endpoints a request pulls data from.
type SourcesConfig struct {
	IPFS struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"ipfs"`

	PriceDB struct {
		URL     string `mapstructure:"url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"pricedb"`

	OpenAI struct {
		BaseURL           string  `mapstructure:"base_url"`
		APIKey            string  `mapstructure:"api_key"`
		Model             string  `mapstructure:"model"`
		Timeout           int     `mapstructure:"timeout"` // milliseconds
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		Burst             int     `mapstructure:"burst"`
	} `mapstructure:"openai"`
}

// FunctionsConfig identifies the DON the secrets are hosted on.
type FunctionsConfig struct {
	RouterAddress string   `mapstructure:"router_address"`
	DonID         string   `mapstructure:"don_id"`
	GatewayURLs   []string `mapstructure:"gateway_urls"`
	RPCURL        string   `mapstructure:"rpc_url"`
	PrivateKey    string   `mapstructure:"private_key"`
	RequestConfig string   `mapstructure:"request_config"`
}

// SecretsConfig controls DON-hosted secrets uploads.
type SecretsConfig struct {
	SlotID            uint `mapstructure:"slot_id"`
	ExpirationMinutes int  `mapstructure:"expiration_minutes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// TTL returns the Redis cache TTL as a duration.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.CacheTTL) * time.Second
}
