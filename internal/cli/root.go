// Package cli implements functions-cli, the operator tooling around the
// verification workers: request simulation, request encoding, response
// decoding and DON-hosted secrets management.
package cli

import (
	"github.com/spf13/cobra"

	"mosaic-functions/internal/common/config"
	"mosaic-functions/internal/common/logger"
)

var (
	verbose           bool
	configFile        string
	requestConfigFile string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "functions-cli",
		Short:         "Simulate, encode and fund Functions verification requests",
		Long:          "functions-cli runs verification requests locally, encodes them for the Functions router, decodes their responses and uploads DON-hosted secrets.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to application config (searches ./configs when empty)")
	root.PersistentFlags().StringVar(&requestConfigFile, "request-config", "", "path to request config (defaults to functions.request_config)")

	root.AddCommand(newSimulateCmd())
	root.AddCommand(newEncodeRequestCmd())
	root.AddCommand(newDecodeResponseCmd())
	root.AddCommand(newUploadSecretsCmd())
	root.AddCommand(newListSecretsCmd())

	return root
}

func loadAppConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.Load()
}

// newLogger writes human-readable logs to stderr so stdout stays parseable.
func newLogger() logger.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.NewZapAdapter(logger.New(level, "console", "stderr"))
}

func requestConfigPath(cfg *config.Config) string {
	if requestConfigFile != "" {
		return requestConfigFile
	}
	if cfg != nil && cfg.Functions.RequestConfig != "" {
		return cfg.Functions.RequestConfig
	}
	return "configs/request-config.yaml"
}
