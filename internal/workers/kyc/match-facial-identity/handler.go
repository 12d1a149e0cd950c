// internal/workers/kyc/match-facial-identity/handler.go
package matchfacialidentity

import (
	"context"
	"encoding/json"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "match-facial-identity"
)

type Handler struct {
	config       *Config
	scorer       *Scorer
	logger       logger.Logger
	errorHandler *kycerrors.ErrorHandler
	schema       *validation.Schema
}

func NewHandler(config *Config, engine FaceComparisonEngine, images DriverImages, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		scorer:       NewScorer(engine, images, config.Bands, config.EngineTimeout, l),
		logger:       l,
		errorHandler: kycerrors.NewErrorHandler(l),
		schema:       validation.MustGet(validation.SchemaFacialMatchInput),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if res := h.schema.ValidateJSON([]byte(job.Variables)); !res.Valid {
		h.errorHandler.HandleJobError(ctx, client, job, kycerrors.NewInvalidInputError(res.Error().Error()))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, kycerrors.NewInvalidInputError(err.Error()))
		return
	}

	h.completeJob(client, job, h.execute(ctx, &input))
}

func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	res := h.scorer.Match(ctx, input.DriverID)
	return &Output{
		FacialScore: res.Score,
		Substituted: res.Substituted,
		Reason:      res.Reason,
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}
