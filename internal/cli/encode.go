package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"mosaic-functions/internal/functions/response"
	"mosaic-functions/pkg/requestconfig"
)

func newEncodeRequestCmd() *cobra.Command {
	var secretsReference string

	cmd := &cobra.Command{
		Use:   "encode-request",
		Short: "Print the CBOR request payload for the router",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			req, err := requestconfig.Load(requestConfigPath(cfg))
			if err != nil {
				return err
			}
			if secretsReference != "" {
				req.SecretsLocation = requestconfig.LocationDONHosted
				req.SecretsReference = secretsReference
			}

			payload, err := req.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(payload))
			return nil
		},
	}

	cmd.Flags().StringVar(&secretsReference, "secrets-reference", "", "DON-hosted secrets reference from upload-secrets")

	return cmd
}

func newDecodeResponseCmd() *cobra.Command {
	var encodedType string

	cmd := &cobra.Command{
		Use:   "decode-response <0x-hex>",
		Short: "Decode an ABI-encoded verification response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := response.FromHex(args[0])
			if err != nil {
				return fmt.Errorf("response must be 0x-hex: %w", err)
			}
			return printDecoded(cmd.OutOrStdout(), encodedType, data)
		},
	}

	cmd.Flags().StringVar(&encodedType, "type", response.StringUint256Type,
		fmt.Sprintf("tuple type, %s or %s", response.StringUint256Type, response.StringStringType))

	return cmd
}
