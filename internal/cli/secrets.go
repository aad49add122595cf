package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"mosaic-functions/internal/common/config"
	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/functions/secrets"
)

// SecretName is the key the request source reads the OpenAI key from.
const SecretName = "openaiApiKey"

type UploadOptions struct {
	SlotID            uint8
	ExpirationMinutes int
}

func newUploadSecretsCmd() *cobra.Command {
	var (
		slotID     uint
		expiration int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload-secrets",
		Short: "Encrypt the OpenAI key and store it as DON-hosted secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			if cfg.Functions.RPCURL == "" {
				return errors.NewMissingSecretError("BASE_SEPOLIA_RPC_URL")
			}
			if !cmd.Flags().Changed("slot-id") {
				slotID = cfg.Secrets.SlotID
			}
			if !cmd.Flags().Changed("expiration") {
				expiration = cfg.Secrets.ExpirationMinutes
			}
			if slotID > 255 {
				return errors.NewValidationError(fmt.Sprintf("slot id %d does not fit in a uint8", slotID))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := ethclient.DialContext(ctx, cfg.Functions.RPCURL)
			if err != nil {
				return fmt.Errorf("dial rpc: %w", err)
			}
			defer client.Close()

			result, err := UploadSecrets(ctx, cfg, client, UploadOptions{
				SlotID:            uint8(slotID),
				ExpirationMinutes: expiration,
			}, newLogger())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slotId:    %d\n", result.SlotID)
			fmt.Fprintf(out, "version:   %d\n", result.Version)
			fmt.Fprintf(out, "reference: %s\n", result.Reference)
			if result.NodeFailures > 0 {
				fmt.Fprintf(out, "warning:   %d DON members rejected the write\n", result.NodeFailures)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&slotID, "slot-id", secrets.DefaultSlotID, "DON storage slot")
	cmd.Flags().IntVar(&expiration, "expiration", secrets.DefaultExpirationMinutes, "minutes until the secrets expire")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall upload deadline")

	return cmd
}

// UploadSecrets reads the DON keys through caller, encrypts the OpenAI key
// for the DON and uploads it to every configured gateway.
func UploadSecrets(ctx context.Context, cfg *config.Config, caller ethereum.ContractCaller, opts UploadOptions, log logger.Logger) (*secrets.UploadResult, error) {
	if cfg.Functions.PrivateKey == "" {
		return nil, errors.NewMissingSecretError("PRIVATE_KEY")
	}
	if cfg.Sources.OpenAI.APIKey == "" {
		return nil, errors.NewMissingSecretError("OPENAI_API_KEY")
	}

	signer, err := secrets.ParsePrivateKey(cfg.Functions.PrivateKey)
	if err != nil {
		return nil, err
	}

	fetcher, err := secrets.NewKeyFetcher(caller, cfg.Functions.RouterAddress, cfg.Functions.DonID)
	if err != nil {
		return nil, err
	}
	keys, err := fetcher.FetchKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch DON keys: %w", err)
	}

	encrypted, err := secrets.Encrypt(signer, keys, map[string]string{SecretName: cfg.Sources.OpenAI.APIKey})
	if err != nil {
		return nil, fmt.Errorf("encrypt secrets: %w", err)
	}

	uploader, err := newUploader(cfg, signer, log)
	if err != nil {
		return nil, err
	}
	return uploader.Upload(ctx, secrets.UploadRequest{
		EncryptedSecrets:  encrypted,
		SlotID:            opts.SlotID,
		ExpirationMinutes: opts.ExpirationMinutes,
	})
}

func newListSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-secrets",
		Short: "Show the DON-hosted secrets stored for the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			if cfg.Functions.PrivateKey == "" {
				return errors.NewMissingSecretError("PRIVATE_KEY")
			}
			signer, err := secrets.ParsePrivateKey(cfg.Functions.PrivateKey)
			if err != nil {
				return err
			}
			uploader, err := newUploader(cfg, signer, newLogger())
			if err != nil {
				return err
			}

			results, err := uploader.List(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}

	return cmd
}

func newUploader(cfg *config.Config, signer *secrets.Signer, log logger.Logger) (*secrets.Uploader, error) {
	return secrets.NewUploader(secrets.UploaderConfig{
		DonID:       cfg.Functions.DonID,
		GatewayURLs: cfg.Functions.GatewayURLs,
	}, signer, log)
}
