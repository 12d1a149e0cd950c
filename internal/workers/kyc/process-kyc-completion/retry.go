// internal/workers/kyc/process-kyc-completion/retry.go
package processkyccompletion

import (
	"time"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/models"
)

// RetryPolicy re-enqueues a failed completion after a fixed delay until
// MaxAttempts is reached.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

type decision struct {
	retry    bool
	retries  int32 // remaining retries to hand back to the broker
	envelope models.NotificationEnvelope
}

// decide classifies a failed attempt. attempt counts from 1 and jobRetries
// is what the broker still allows for the job.
func (p RetryPolicy) decide(driverID string, attempt int, jobRetries int32, cause error) decision {
	env := models.NotificationEnvelope{
		DriverID:     driverID,
		AttemptCount: attempt,
		MaxAttempts:  p.MaxAttempts,
		RetryDelay:   p.Delay,
	}
	if cause != nil {
		env.FailureReason = failureReason(cause)
	}

	if !kycerrors.IsRetryable(cause) || env.Exhausted() || jobRetries <= 1 {
		return decision{retry: false, retries: 0, envelope: env}
	}
	return decision{retry: true, retries: jobRetries - 1, envelope: env}
}

// failureReason keeps the details that StandardError.Error omits.
func failureReason(err error) string {
	if stdErr, ok := kycerrors.AsStandardError(err); ok && stdErr.Details != "" {
		return stdErr.Error() + ": " + stdErr.Details
	}
	return err.Error()
}
