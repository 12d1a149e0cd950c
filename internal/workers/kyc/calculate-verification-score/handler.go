// internal/workers/kyc/calculate-verification-score/handler.go
package calculateverificationscore

import (
	"context"
	"encoding/json"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/metrics"
	"kyc-workers/internal/common/validation"
	"kyc-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "calculate-verification-score"
)

// ResultStore appends verification results. Rows are never updated.
type ResultStore interface {
	InsertVerificationResult(ctx context.Context, res *models.VerificationResult) error
}

type Handler struct {
	config       *Config
	aggregator   *Aggregator
	store        ResultStore
	logger       logger.Logger
	errorHandler *kycerrors.ErrorHandler
	schema       *validation.Schema
}

func NewHandler(config *Config, store ResultStore, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		aggregator:   NewAggregator(config.Weights, config.DefaultFacial, l),
		store:        store,
		logger:       l,
		errorHandler: kycerrors.NewErrorHandler(l).WithRetryBackoff(config.RetryBackoff),
		schema:       validation.MustGet(validation.SchemaScoreInput),
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

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.DriverID == "" {
		return nil, kycerrors.NewInvalidInputError("driverId is required")
	}

	score := h.aggregator.Calculate(input.ScoreInput)
	metrics.KYCVerificationScore.Observe(float64(score.FinalScore))

	result := &models.VerificationResult{
		DriverID:    input.DriverID,
		FinalScore:  score.FinalScore,
		Components:  score.Components,
		Substituted: score.Substituted,
		Reason:      score.Reason,
	}
	if err := h.store.InsertVerificationResult(ctx, result); err != nil {
		return nil, kycerrors.NewVerificationPersistFailedError(err)
	}

	h.logger.Info("verification score calculated", map[string]interface{}{
		"driverId":    input.DriverID,
		"resultId":    result.ID,
		"finalScore":  score.FinalScore,
		"components":  score.Components,
		"substituted": score.Substituted,
	})

	return &Output{
		VerificationResultID: result.ID,
		FinalScore:           score.FinalScore,
		Components:           score.Components,
		Substituted:          score.Substituted,
		Reason:               score.Reason,
	}, nil
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
