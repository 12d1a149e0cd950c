// internal/workers/kyc/process-kyc-completion/handler.go
package processkyccompletion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/metrics"
	"kyc-workers/internal/common/validation"
	"kyc-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "process-kyc-completion"
)

type FailureStore interface {
	RecordCompletionFailure(ctx context.Context, f *models.CompletionFailure) error
}

type HandlerOptions struct {
	Config     *Config
	Store      DriverStore
	Failures   FailureStore
	Audit      AuditRecorder
	Dispatcher Dispatcher
	Mailer     Mailer
	Logger     logger.Logger
}

type Handler struct {
	config       *Config
	orchestrator *Orchestrator
	failures     FailureStore
	policy       RetryPolicy
	logger       logger.Logger
	schema       *validation.Schema
}

func NewHandler(opts HandlerOptions) *Handler {
	l := opts.Logger.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       opts.Config,
		orchestrator: NewOrchestrator(opts.Config, opts.Store, opts.Audit, opts.Dispatcher, opts.Mailer, l),
		failures:     opts.Failures,
		policy:       RetryPolicy{MaxAttempts: opts.Config.MaxAttempts, Delay: opts.Config.RetryDelay},
		logger:       l,
		schema:       validation.MustGet(validation.SchemaCompletionEvent),
	}
}

// result is what the handler tells the broker about one activation.
type result struct {
	output      *Output
	retries     int32
	backoff     time.Duration
	attempts    int
	errorCode   string
	errorReason string
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"retries":     job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	res := h.process(ctx, job)
	if res.output != nil {
		h.completeJob(client, job, res.output)
		return
	}
	h.failJob(client, job, res)
}

// process runs one attempt and decides between completion, a delayed retry
// and terminal failure.
func (h *Handler) process(ctx context.Context, job entities.Job) result {
	var input Input
	if sr := h.schema.ValidateJSON([]byte(job.Variables)); !sr.Valid {
		_ = json.Unmarshal([]byte(job.Variables), &input)
		return h.terminal(ctx, job, input.DriverID, input.Attempts+1, kycerrors.NewInvalidInputError(sr.Error().Error()))
	}
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return h.terminal(ctx, job, "", 1, kycerrors.NewInvalidInputError(err.Error()))
	}
	attempt := input.Attempts + 1

	report, err := h.runOrchestrator(ctx, models.CompletionEvent{
		EventID:        input.EventID,
		DriverID:       input.DriverID,
		CompletionData: input.CompletionData,
	})
	if err == nil {
		return result{output: &Output{
			DriverID:              report.DriverID,
			AuditID:               report.AuditID,
			AdminsNotified:        report.AdminsNotified,
			NotificationFailures:  len(report.NotificationFailures),
			EmailsSent:            report.EmailsSent,
			EmailFailures:         len(report.EmailFailures),
			StatusTransitioned:    report.Transitioned,
			KYCCompletionAttempts: attempt,
		}}
	}

	d := h.policy.decide(input.DriverID, attempt, job.Retries, err)
	if !d.retry {
		return h.terminal(ctx, job, input.DriverID, attempt, err)
	}

	stdErr := kycerrors.Normalize(err)
	h.logger.Warn("kyc completion failed, scheduling retry", map[string]interface{}{
		"driverId":    input.DriverID,
		"attempt":     attempt,
		"maxAttempts": h.policy.MaxAttempts,
		"retryDelay":  h.policy.Delay.String(),
		"errorCode":   string(stdErr.Code),
		"error":       err,
	})
	return result{
		retries:     d.retries,
		backoff:     h.policy.Delay,
		attempts:    attempt,
		errorCode:   string(stdErr.Code),
		errorReason: d.envelope.FailureReason,
	}
}

// runOrchestrator turns a panic inside the unit into a retryable error so it
// goes through the retry policy like any other failure.
func (h *Handler) runOrchestrator(ctx context.Context, event models.CompletionEvent) (report *Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("kyc completion panicked", map[string]interface{}{
				"driverId": event.DriverID,
				"panic":    fmt.Sprintf("%v", r),
			})
			report, err = nil, kycerrors.NewUnexpectedPanicError(r)
		}
	}()
	return h.orchestrator.Process(ctx, event)
}

// terminal marks the unit permanently failed. The job is failed with zero
// retries, which raises an incident instead of dropping it.
func (h *Handler) terminal(ctx context.Context, job entities.Job, driverID string, attempt int, cause error) result {
	stdErr := kycerrors.Normalize(cause)
	h.logger.Critical("kyc completion permanently failed", map[string]interface{}{
		"driverId":    driverID,
		"jobKey":      job.Key,
		"attempts":    attempt,
		"maxAttempts": h.policy.MaxAttempts,
		"errorCode":   string(stdErr.Code),
		"error":       cause,
	})
	metrics.KYCCompletionTerminalFailures.Inc()

	if h.failures != nil {
		rec := &models.CompletionFailure{
			DriverID:      driverID,
			Attempts:      attempt,
			FailureReason: failureReason(cause),
			JobKey:        job.Key,
		}
		if err := h.failures.RecordCompletionFailure(ctx, rec); err != nil {
			h.logger.Error("failed to record completion failure", map[string]interface{}{
				"driverId": driverID,
				"error":    err,
			})
		}
	}

	exhausted := kycerrors.NewCompletionExhaustedError(driverID, attempt, failureReason(cause))
	return result{
		retries:     0,
		attempts:    attempt,
		errorCode:   string(exhausted.Code),
		errorReason: failureReason(exhausted),
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

func (h *Handler) failJob(client worker.JobClient, job entities.Job, res result) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(res.retries).
		ErrorMessage(res.errorReason)
	if res.backoff > 0 {
		cmd = cmd.RetryBackoff(res.backoff)
	}

	vars := map[string]interface{}{
		"kycCompletionAttempts":  res.attempts,
		"kycCompletionErrorCode": res.errorCode,
	}
	var err error
	if withVars, vErr := cmd.VariablesFromMap(vars); vErr == nil {
		_, err = withVars.Send(context.Background())
	} else {
		_, err = cmd.Send(context.Background())
	}
	if err != nil {
		h.logger.Error("failed to send fail job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
	}
}
