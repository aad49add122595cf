package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mosaic-functions/internal/common/config"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/functions/reconcile"
	"mosaic-functions/internal/functions/response"
	"mosaic-functions/internal/workers/verification"
	certificateextraction "mosaic-functions/internal/workers/verification/certificate-extraction"
	workverification "mosaic-functions/internal/workers/verification/work-verification"
	"mosaic-functions/pkg/requestconfig"
)

// Simulation is the outcome of running a request in-process.
type Simulation struct {
	Source      string
	EncodedType string
	Response    []byte
	// Error is the message the worker encoded instead of a result, if any.
	Error string
}

func newSimulateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the configured request locally against live sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			req, err := requestconfig.Load(requestConfigPath(cfg))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sim, err := Simulate(ctx, cfg, req, newLogger())
			if err != nil {
				return err
			}
			return printSimulation(cmd.OutOrStdout(), sim)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "overall simulation deadline")

	return cmd
}

// Simulate runs the worker service named by the request source with the
// request args, exactly as a job would, and returns the encoded response.
func Simulate(ctx context.Context, cfg *config.Config, req *requestconfig.Config, log logger.Logger) (*Simulation, error) {
	sources, err := verification.NewSources(cfg, nil, log)
	if err != nil {
		return nil, err
	}

	switch req.Source {
	case workverification.TaskType:
		svc := workverification.NewService(workverification.ServiceDependencies{
			Fetcher:   sources.IPFS,
			Market:    sources.PriceDB,
			Organizer: reconcile.NewAIOrganizer(sources.OpenAI),
			Logger:    log,
		}, workverification.DefaultConfig())
		out, err := svc.Execute(ctx, &workverification.Input{Args: req.Args})
		if err != nil {
			return nil, err
		}
		return &Simulation{
			Source:      req.Source,
			EncodedType: response.StringUint256Type,
			Response:    out.Response,
			Error:       out.Error,
		}, nil

	case certificateextraction.TaskType:
		if len(req.Args) == 0 {
			return nil, fmt.Errorf("%s needs the certificate image hash as its first arg", req.Source)
		}
		svc := certificateextraction.NewService(certificateextraction.ServiceDependencies{
			Chat:   sources.OpenAI,
			Images: sources.IPFS,
			Logger: log,
		}, certificateextraction.DefaultConfig())
		out, err := svc.Execute(ctx, &certificateextraction.Input{CertificateImageHash: req.Args[0]})
		if err != nil {
			return nil, err
		}
		return &Simulation{
			Source:      req.Source,
			EncodedType: response.StringStringType,
			Response:    out.Response,
			Error:       out.Error,
		}, nil
	}

	return nil, fmt.Errorf("unknown request source %q (want %s or %s)",
		req.Source, workverification.TaskType, certificateextraction.TaskType)
}

func printSimulation(w io.Writer, sim *Simulation) error {
	fmt.Fprintf(w, "source:   %s\n", sim.Source)
	fmt.Fprintf(w, "response: %s\n", response.Hex(sim.Response))
	if sim.Error != "" {
		fmt.Fprintf(w, "error:    %s\n", sim.Error)
	}
	return printDecoded(w, sim.EncodedType, sim.Response)
}

func printDecoded(w io.Writer, encodedType string, data []byte) error {
	switch encodedType {
	case response.StringUint256Type:
		name, price, err := response.DecodeResult(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "decoded:  %s (%q, %s)\n", encodedType, name, price.String())
	case response.StringStringType:
		a, b, err := response.DecodeStrings(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "decoded:  %s (%q, %q)\n", encodedType, a, b)
	default:
		return fmt.Errorf("unsupported response type %q", encodedType)
	}
	return nil
}
