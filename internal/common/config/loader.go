// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// Enable ENV override like SOURCES_OPENAI_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the variable names the request tooling has always used.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Sources.OpenAI.APIKey == "" {
		cfg.Sources.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Functions.PrivateKey == "" {
		cfg.Functions.PrivateKey = os.Getenv("PRIVATE_KEY")
	}
	if cfg.Functions.RPCURL == "" {
		cfg.Functions.RPCURL = os.Getenv("BASE_SEPOLIA_RPC_URL")
	}
	if cfg.Camunda.BrokerAddress == "" {
		cfg.Camunda.BrokerAddress = os.Getenv("ZEEBE_ADDRESS")
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = os.Getenv("REDIS_ADDRESS")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "mosaic-functions"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = 24 * 60 * 60
	}

	if cfg.Sources.IPFS.BaseURL == "" {
		cfg.Sources.IPFS.BaseURL = "https://peach-genuine-lamprey-766.mypinata.cloud/ipfs"
	}
	if cfg.Sources.IPFS.Timeout == 0 {
		cfg.Sources.IPFS.Timeout = 10000
	}
	if cfg.Sources.PriceDB.URL == "" {
		cfg.Sources.PriceDB.URL = "https://pricedb.ms.masterworks.io/graphql"
	}
	if cfg.Sources.PriceDB.Timeout == 0 {
		cfg.Sources.PriceDB.Timeout = 10000
	}
	if cfg.Sources.OpenAI.BaseURL == "" {
		cfg.Sources.OpenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.Sources.OpenAI.Model == "" {
		cfg.Sources.OpenAI.Model = "gpt-4o"
	}
	if cfg.Sources.OpenAI.Timeout == 0 {
		cfg.Sources.OpenAI.Timeout = 40000
	}

	// Base Sepolia DON
	if cfg.Functions.RouterAddress == "" {
		cfg.Functions.RouterAddress = "0xf9B8fc078197181C841c296C876945aaa425B278"
	}
	if cfg.Functions.DonID == "" {
		cfg.Functions.DonID = "fun-base-sepolia-1"
	}
	if len(cfg.Functions.GatewayURLs) == 0 {
		cfg.Functions.GatewayURLs = []string{
			"https://01.functions-gateway.testnet.chain.link/",
			"https://02.functions-gateway.testnet.chain.link/",
		}
	}

	if cfg.Secrets.ExpirationMinutes == 0 {
		cfg.Secrets.ExpirationMinutes = 2880
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 120000
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Redis.Enabled && cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}
	if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint is required when tracing is enabled")
	}
	if cfg.Secrets.ExpirationMinutes < 0 {
		return fmt.Errorf("secrets.expiration_minutes must not be negative")
	}
	return nil
}

// RequireWorkerRuntime checks the fields the worker manager cannot start without.
func (c *Config) RequireWorkerRuntime() error {
	if c.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       120000,
		MaxRetries:    0,
	}
}
