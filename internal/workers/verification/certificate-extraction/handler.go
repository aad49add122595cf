package certificateextraction

import (
	"context"
	"fmt"
	"time"

	"mosaic-functions/internal/common/camunda"
	"mosaic-functions/internal/common/config"
	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/metrics"
	"mosaic-functions/internal/common/observability"
	"mosaic-functions/internal/common/validation"
	"mosaic-functions/internal/functions/response"
	"mosaic-functions/internal/workers/verification"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "certificate-extraction"

type Executor interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	camunda    *camunda.Client
	service    Executor
	obs        *observability.Observability
	errHandler *errors.ErrorHandler
	jobWorker  *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
	Sources       *verification.Sources
	Service       Executor
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for certificate-extraction: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"worker": TaskType})

	handler := &Handler{
		config:     workerConfig,
		logger:     loggerInstance,
		camunda:    opts.Camunda,
		obs:        opts.Observability,
		errHandler: errors.NewErrorHandler(loggerInstance),
		service:    opts.Service,
	}

	if handler.service == nil {
		sources := opts.Sources
		if sources == nil {
			var err error
			sources, err = verification.NewSources(opts.AppConfig, nil, loggerInstance)
			if err != nil {
				return nil, fmt.Errorf("certificate-extraction sources: %w", err)
			}
		}
		handler.service = NewService(ServiceDependencies{
			Chat:   sources.OpenAI,
			Images: sources.IPFS,
			Logger: loggerInstance,
		}, handler.config)
	}

	return handler, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing certificate extraction request", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.process(ctx, job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errors.CodeOf(err)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "COMPLETE_FAILED").Inc()
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	outcome := "result"
	if output.Artist == "" {
		outcome = "empty"
	}
	elapsed := time.Since(startTime)
	metrics.EncodedResponses.WithLabelValues(TaskType, outcome).Inc()
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, outcome)
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, outcome)
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	if !h.config.Enabled {
		h.logger.Info("Worker disabled by configuration", nil)
		return emptyOutput("certificate extraction is disabled"), nil
	}

	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.service.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingError(err)
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	args, _ := variables["args"].([]interface{})
	hash, _ := args[0].(string)
	return &Input{CertificateImageHash: hash}, nil
}

func outputVariables(output *Output) map[string]interface{} {
	return map[string]interface{}{
		"response":    response.Hex(output.Response),
		"encodedType": response.StringStringType,
		"artist":      output.Artist,
		"title":       output.Title,
		"error":       output.Error,
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	variables := outputVariables(output)

	err := camunda.SendWithRetry(ctx, nil, func(ctx context.Context) error {
		request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
		if err != nil {
			return err
		}
		_, err = request.Send(ctx)
		return err
	}, "complete "+TaskType)
	if err != nil {
		return err
	}

	h.logger.Info("Successfully completed certificate extraction", map[string]interface{}{
		"jobKey": job.GetKey(),
		"artist": output.Artist,
		"title":  output.Title,
	})
	return nil
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	h.jobWorker = camunda.OpenWorker(h.camunda.GetClient(), camunda.WorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}, h, h.logger)
	return nil
}

func (h *Handler) Close() {
	h.jobWorker.Close()
	h.jobWorker = nil
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return nil
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[TaskType]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = config.GetDuration(workerCfg.Timeout)
			}
		}
	}

	return cfg
}
