// internal/workers/kyc/validate-document/handler.go
package validatedocument

import (
	"context"
	"encoding/json"

	"kyc-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-document"
)

type Handler struct {
	config    *Config
	validator *Validator
	logger    logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		validator: NewValidator(),
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Handle always completes the job. An invalid document is a result, not a
// job failure.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output := h.execute(ctx, []byte(job.Variables))
	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, raw []byte) *Output {
	var input Input
	_ = json.Unmarshal(raw, &input)

	res := h.validator.ValidateJSON(raw)

	fields := map[string]interface{}{
		"driverId":     input.DriverID,
		"documentType": input.DocumentType,
		"valid":        res.Valid,
	}
	if !res.Valid {
		fields["errors"] = res.Errors
	}
	h.logger.Info("document validated", fields)
	return &res
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

func (h *Handler) Execute(ctx context.Context, raw []byte) *Output {
	return h.execute(ctx, raw)
}
